// Package convstore implements core.ConversationStore, the Answer
// Orchestrator's direct repository access to conversations/messages/
// sources, in the same plain-SQL CRUD style as the teacher's
// DatabaseClient (one query per method, sql.ErrNoRows mapped to
// core.ErrNotFound, no ORM).
package convstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(conn *sql.DB) *Store {
	return &Store{db: conn}
}

var _ core.ConversationStore = (*Store)(nil)

// CreateConversation inserts the parent row a batch's messages and
// ingestion status will hang off of. StartIngestion calls this before
// enqueuing a batch, since messages.conversation_id and
// conversations.ingestion_status both require the row to already exist.
func (s *Store) CreateConversation(ctx context.Context, conversationID, userID, title string) error {
	const q = `
		INSERT INTO conversations (id, title, user_id, ingestion_status)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, q, conversationID, title, userID, models.StatusPending); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	const q = `
		SELECT id, title, user_id, ingestion_status, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	var c models.Conversation
	err := s.db.QueryRowContext(ctx, q, conversationID).Scan(
		&c.ID, &c.Title, &c.UserID, &c.IngestionStatus, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	companies, err := s.loadCompanies(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	c.Companies = companies
	return &c, nil
}

func (s *Store) loadCompanies(ctx context.Context, conversationID string) ([]models.Company, error) {
	const q = `SELECT company_id, company_name FROM conversation_companies WHERE conversation_id = $1`
	rows, err := s.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation companies: %w", err)
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan conversation company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadMessages returns a conversation's messages in chronological order,
// with per-message sources attached.
func (s *Store) LoadMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	const q = `
		SELECT id, conversation_id, role, content, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var metadataRaw []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &metadataRaw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &m.Metadata); err != nil {
				return nil, fmt.Errorf("%w: unmarshal message metadata: %v", core.ErrStateCorrupt, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		sources, err := s.loadSources(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Sources = sources
	}
	return out, nil
}

func (s *Store) loadSources(ctx context.Context, messageID string) ([]models.Source, error) {
	const q = `
		SELECT document_id, document_title, relevance_score, chunks_used, source_order
		FROM message_sources
		WHERE message_id = $1
		ORDER BY source_order ASC
	`
	rows, err := s.db.QueryContext(ctx, q, messageID)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var src models.Source
		if err := rows.Scan(&src.DocumentID, &src.DocumentTitle, &src.RelevanceScore, &src.ChunksUsed, &src.Order); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// AppendMessage inserts a message and its sources in one transaction.
func (s *Store) AppendMessage(ctx context.Context, message *models.Message) error {
	if message == nil {
		return fmt.Errorf("%w: nil message", core.ErrValidation)
	}

	metadataRaw, err := json.Marshal(message.Metadata)
	if err != nil {
		return fmt.Errorf("marshal message metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insMsg = `
		INSERT INTO messages (id, conversation_id, role, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, insMsg,
		message.ID, message.ConversationID, message.Role, message.Content, metadataRaw,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	const insSrc = `
		INSERT INTO message_sources (message_id, document_id, document_title, relevance_score, chunks_used, source_order)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, src := range message.Sources {
		if _, err := tx.ExecContext(ctx, insSrc,
			message.ID, src.DocumentID, src.DocumentTitle, src.RelevanceScore, src.ChunksUsed, src.Order,
		); err != nil {
			return fmt.Errorf("insert source: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) TouchConversation(ctx context.Context, conversationID string) error {
	const q = `UPDATE conversations SET updated_at = now() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, conversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch conversation rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	return nil
}

// UpdateIngestionStatus mirrors a pipeline batch's terminal status onto
// its conversation row, so a client reconnecting after a batch finishes
// sees the outcome without replaying the whole progress stream.
func (s *Store) UpdateIngestionStatus(ctx context.Context, conversationID string, status models.IngestionStatus) error {
	const q = `UPDATE conversations SET ingestion_status = $1, updated_at = now() WHERE id = $2`
	res, err := s.db.ExecContext(ctx, q, status, conversationID)
	if err != nil {
		return fmt.Errorf("update ingestion status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ingestion status rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	return nil
}
