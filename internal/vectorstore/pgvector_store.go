// Package vectorstore implements core.VectorStore over Postgres with the
// pgvector extension, adapted from the teacher's
// internal/core/database/client_database_pgx.go.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
)

// Store implements core.VectorStore over a *sql.DB opened by
// internal/db.Open.
type Store struct {
	db *sql.DB
}

func New(conn *sql.DB) *Store {
	return &Store{db: conn}
}

var _ core.VectorStore = (*Store)(nil)

// FindSimilarAllSystem scans the whole UserDocument owner class, no
// scope filter, ascending cosine distance.
func (s *Store) FindSimilarAllSystem(ctx context.Context, queryVec []float32, topK int) ([]models.SimilarChunk, error) {
	const q = `
		SELECT text, document_id, document_title, 1 - (vector <=> $1) AS similarity
		FROM embeddings
		WHERE owner = $2
		ORDER BY vector <=> $1
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, pgvector.NewVector(queryVec), models.OwnerUserDocument, topK)
	if err != nil {
		return nil, fmt.Errorf("find similar all system: %w", err)
	}
	defer rows.Close()
	return scanSimilar(rows)
}

// FindSimilarInConversation restricts to the given owner, the scope's
// user, and either any conversation for that user (when
// scope.ConversationID is empty) or one specific conversation.
func (s *Store) FindSimilarInConversation(ctx context.Context, queryVec []float32, owner models.OwnerKind, scope models.VectorScope, topK int) ([]models.SimilarChunk, error) {
	const qAny = `
		SELECT text, document_id, document_title, 1 - (vector <=> $1) AS similarity
		FROM embeddings
		WHERE owner = $2 AND user_scope = $3
		ORDER BY vector <=> $1
		LIMIT $4
	`
	const qOne = `
		SELECT text, document_id, document_title, 1 - (vector <=> $1) AS similarity
		FROM embeddings
		WHERE owner = $2 AND user_scope = $3 AND conversation_scope = $4
		ORDER BY vector <=> $1
		LIMIT $5
	`

	var (
		rows *sql.Rows
		err  error
	)
	vec := pgvector.NewVector(queryVec)
	if scope.ConversationID == "" {
		rows, err = s.db.QueryContext(ctx, qAny, vec, owner, scope.UserID, topK)
	} else {
		rows, err = s.db.QueryContext(ctx, qOne, vec, owner, scope.UserID, scope.ConversationID, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("find similar in conversation: %w", err)
	}
	defer rows.Close()
	return scanSimilar(rows)
}

// FindSimilarAdaptive filters by a similarity floor instead of a plain
// top-K cutoff, optionally scoped, and omits the LIMIT clause entirely
// when maxK <= 0 (unlimited, per the Exhaustive retrieval strategy).
func (s *Store) FindSimilarAdaptive(ctx context.Context, queryVec []float32, owner models.OwnerKind, maxK int, minSimilarity float32, scope *models.VectorScope) ([]models.SimilarChunk, error) {
	vec := pgvector.NewVector(queryVec)
	maxDistance := 1 - minSimilarity

	query := `
		SELECT text, document_id, document_title, 1 - (vector <=> $1) AS similarity
		FROM embeddings
		WHERE owner = $2 AND vector <=> $1 <= $3
	`
	args := []any{vec, owner, maxDistance}

	if scope != nil {
		query += fmt.Sprintf(" AND user_scope = $%d", len(args)+1)
		args = append(args, scope.UserID)
		if scope.ConversationID != "" {
			query += fmt.Sprintf(" AND conversation_scope = $%d", len(args)+1)
			args = append(args, scope.ConversationID)
		}
	}

	query += " ORDER BY vector <=> $1"
	if maxK > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, maxK)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find similar adaptive: %w", err)
	}
	defer rows.Close()
	return scanSimilar(rows)
}

func scanSimilar(rows *sql.Rows) ([]models.SimilarChunk, error) {
	var out []models.SimilarChunk
	for rows.Next() {
		var c models.SimilarChunk
		if err := rows.Scan(&c.Text, &c.DocumentID, &c.DocumentTitle, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertEmbeddings groups items by (owner, userScope, conversationScope,
// documentId), preloads existing rows per group keyed by chunkIndex, and
// inserts or hash-gates an update for each incoming item. Mirrors §4.9's
// preload-then-insert-or-update algorithm.
func (s *Store) UpsertEmbeddings(ctx context.Context, items []models.Embedding) error {
	return s.upsert(ctx, items, groupKeyFull)
}

// UpsertDocumentEmbeddings groups only by documentId, for bulk corpus
// loads where owner/scope are uniform across the whole batch.
func (s *Store) UpsertDocumentEmbeddings(ctx context.Context, items []models.Embedding) error {
	return s.upsert(ctx, items, groupKeyDocumentOnly)
}

func groupKeyFull(e models.Embedding) string {
	return string(e.Owner) + "\x00" + e.UserScope + "\x00" + e.ConversationScope + "\x00" + e.DocumentID
}

func groupKeyDocumentOnly(e models.Embedding) string {
	return e.DocumentID
}

func (s *Store) upsert(ctx context.Context, items []models.Embedding, keyFn func(models.Embedding) string) error {
	if len(items) == 0 {
		return nil
	}

	groups := make(map[string][]models.Embedding)
	var order []string
	for _, it := range items {
		k := keyFn(it)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range order {
		group := groups[k]
		existing, err := preloadExisting(ctx, tx, group[0])
		if err != nil {
			return err
		}
		for _, item := range group {
			if err := upsertOne(ctx, tx, item, existing); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// preloadExisting fetches chunkIndex -> chunkHash for the group that
// sample belongs to, so each row upsert can hash-compare without an
// extra round trip.
func preloadExisting(ctx context.Context, tx *sql.Tx, sample models.Embedding) (map[int]string, error) {
	const q = `
		SELECT chunk_index, chunk_hash
		FROM embeddings
		WHERE owner = $1 AND user_scope = $2 AND conversation_scope = $3 AND document_id = $4
	`
	rows, err := tx.QueryContext(ctx, q, sample.Owner, sample.UserScope, sample.ConversationScope, sample.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("preload existing embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var idx int
		var hash string
		if err := rows.Scan(&idx, &hash); err != nil {
			return nil, fmt.Errorf("scan existing embedding: %w", err)
		}
		out[idx] = hash
	}
	return out, rows.Err()
}

func upsertOne(ctx context.Context, tx *sql.Tx, item models.Embedding, existing map[int]string) error {
	storedHash, present := existing[item.ChunkIndex]
	if present && storedHash == item.ChunkHash {
		return nil
	}

	vec := pgvector.NewVector(item.Vector)

	if !present {
		const ins = `
			INSERT INTO embeddings
				(id, text, vector, document_id, document_title, owner, user_scope, conversation_scope, chunk_index, chunk_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (owner, user_scope, conversation_scope, document_id, chunk_index) DO NOTHING
		`
		_, err := tx.ExecContext(ctx, ins,
			item.ID, item.Text, vec, item.DocumentID, item.DocumentTitle,
			item.Owner, item.UserScope, item.ConversationScope, item.ChunkIndex, item.ChunkHash,
		)
		if err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
		return nil
	}

	const upd = `
		UPDATE embeddings
		SET text = $1, vector = $2, document_title = $3, chunk_hash = $4, updated_at = now()
		WHERE owner = $5 AND user_scope = $6 AND conversation_scope = $7 AND document_id = $8 AND chunk_index = $9
	`
	_, err := tx.ExecContext(ctx, upd,
		item.Text, vec, item.DocumentTitle, item.ChunkHash,
		item.Owner, item.UserScope, item.ConversationScope, item.DocumentID, item.ChunkIndex,
	)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return nil
}

func (s *Store) EmbeddingsForDocument(ctx context.Context, documentID string) ([]models.Embedding, error) {
	const q = `
		SELECT id, text, vector, document_id, document_title, owner, user_scope, conversation_scope, chunk_index, chunk_hash, created_at, updated_at
		FROM embeddings
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := s.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("embeddings for document: %w", err)
	}
	defer rows.Close()

	var out []models.Embedding
	for rows.Next() {
		var e models.Embedding
		var vec pgvector.Vector
		if err := rows.Scan(
			&e.ID, &e.Text, &vec, &e.DocumentID, &e.DocumentTitle, &e.Owner,
			&e.UserScope, &e.ConversationScope, &e.ChunkIndex, &e.ChunkHash, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Vector = vec.Slice()
		out = append(out, e)
	}
	return out, rows.Err()
}
