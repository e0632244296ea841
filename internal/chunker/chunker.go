// Package chunker splits normalized text into overlapping, token-bounded
// passages (§2 Chunker). Adapted from the teacher's streaming
// chunk_extractor.go, generalized from a channel-fed pipeline stage into
// a pure function the pipeline orchestrator calls once per extracted
// document (stage 2 is a whole-artifact skip, so streaming offers no
// benefit here).
package chunker

import (
	"strings"

	"github.com/contexta-labs/filingsrag/internal/core"
)

// OverlapChunker groups lines into token-bounded chunks with a trailing
// overlap carried into the next chunk, the same token-accumulation idiom
// as the teacher's streamChunk.
type OverlapChunker struct {
	targetTokens  int
	overlapTokens int
}

// NewOverlapChunker constructs a chunker. targetTokens/overlapTokens are
// approximate (see approxTokens); defaults mirror the teacher's IngestConfig
// (TargetTokens, OverlapTokens).
func NewOverlapChunker(targetTokens, overlapTokens int) *OverlapChunker {
	if targetTokens <= 0 {
		targetTokens = 500
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	return &OverlapChunker{targetTokens: targetTokens, overlapTokens: overlapTokens}
}

var _ core.Chunker = (*OverlapChunker)(nil)

// Chunk splits text into overlapping passages. Lines are the atomic unit
// accumulated into a chunk, matching the teacher's fragment-join-by-\n
// approach.
func (c *OverlapChunker) Chunk(text string) []core.ChunkedText {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return nil
	}

	var (
		out    []core.ChunkedText
		buf    []string
		tokSum int
		pos    int
	)

	flush := func(force bool) {
		if tokSum == 0 && !force {
			return
		}
		if len(buf) == 0 {
			return
		}
		out = append(out, core.ChunkedText{Index: pos, Text: strings.Join(buf, "\n")})
		pos++

		if c.overlapTokens > 0 {
			keep := []string{}
			remain := c.overlapTokens
			for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
				keep = append([]string{buf[j]}, keep...)
				remain -= approxTokens(buf[j])
			}
			buf = keep
			tokSum = 0
			for _, s := range buf {
				tokSum += approxTokens(s)
			}
		} else {
			buf = nil
			tokSum = 0
		}
	}

	for _, line := range lines {
		buf = append(buf, line)
		tokSum += approxTokens(line)
		if tokSum >= c.targetTokens {
			flush(false)
		}
	}
	flush(true)

	return out
}

func nonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// approxTokens is a cheap estimator (~4 chars per token), same as the
// teacher's approxTokens.
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
