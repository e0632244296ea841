package retrieval

import (
	"sort"

	"github.com/contexta-labs/filingsrag/internal/models"
)

// mergeKey is the (documentId, text) collision key of §4.6 step 8.
type mergeKey struct {
	documentID string
	text       string
}

// mergeChunk is one merged (text, documentId, documentTitle, similarity)
// tuple, tagged with whether a referenced document produced it (which
// always wins collisions; similarity ties are broken by key only).
type mergeChunk struct {
	models.SimilarChunk
	referenced bool
}

// mergeResults inserts adaptive results first (max similarity on
// collision), then referenced results (which always overwrite on
// collision regardless of similarity), per §4.6 step 8. The result is
// sorted by similarity descending, with lexicographically smaller
// (documentId, text) breaking ties.
func mergeResults(adaptive, referenced []models.SimilarChunk) []mergeChunk {
	merged := make(map[mergeKey]mergeChunk)

	for _, c := range adaptive {
		k := mergeKey{documentID: c.DocumentID, text: c.Text}
		existing, ok := merged[k]
		if !ok || c.Similarity > existing.Similarity {
			merged[k] = mergeChunk{SimilarChunk: c}
		}
	}

	for _, c := range referenced {
		k := mergeKey{documentID: c.DocumentID, text: c.Text}
		merged[k] = mergeChunk{SimilarChunk: c, referenced: true}
	}

	out := make([]mergeChunk, 0, len(merged))
	for _, v := range merged {
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// aggregate groups merged chunks by documentId per §4.6 step 9:
// chunksUsed, max similarity, first-seen title, plus a zero-match
// entry for every explicitly referenced document absent from merged.
// No average similarity is computed or kept.
// Groups are ordered by maxSimilarity descending, smaller documentId
// breaking ties, and assigned Order = 0..n-1.
func aggregate(merged []mergeChunk, referencedDocumentIDs []string) []models.Source {
	type agg struct {
		documentTitle string
		chunksUsed    int
		maxSimilarity float32
	}

	groups := make(map[string]*agg)
	var order []string

	for _, c := range merged {
		g, ok := groups[c.DocumentID]
		if !ok {
			g = &agg{documentTitle: c.DocumentTitle, maxSimilarity: c.Similarity}
			groups[c.DocumentID] = g
			order = append(order, c.DocumentID)
		}
		g.chunksUsed++
		if c.Similarity > g.maxSimilarity {
			g.maxSimilarity = c.Similarity
		}
	}

	for _, docID := range referencedDocumentIDs {
		if _, ok := groups[docID]; !ok {
			groups[docID] = &agg{}
			order = append(order, docID)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := groups[order[i]], groups[order[j]]
		if a.maxSimilarity != b.maxSimilarity {
			return a.maxSimilarity > b.maxSimilarity
		}
		return order[i] < order[j]
	})

	out := make([]models.Source, 0, len(order))
	for i, docID := range order {
		g := groups[docID]
		out = append(out, models.Source{
			DocumentID:     docID,
			DocumentTitle:  g.documentTitle,
			RelevanceScore: g.maxSimilarity,
			ChunksUsed:     g.chunksUsed,
			Order:          i,
		})
	}
	return out
}
