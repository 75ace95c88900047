package retriever

import (
	"fmt"

	"github.com/mybrainlabs/recall/internal/store"
)

// InvalidQueryError reports a query that cannot be retrieved against,
// such as an empty or whitespace-only string.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// Candidate is one retrieved chunk with its scoring breakdown. DenseScore
// and LexicalScore are zero when the corresponding arm did not surface the
// chunk.
type Candidate struct {
	Chunk        store.Chunk
	DenseScore   float64
	LexicalScore float64
	RecencyBoost float64
	FusedScore   float64

	// UseFullContent marks that the source document's full text should
	// replace this chunk when assembling answer context.
	UseFullContent bool
}

// Result is a ranked retrieval outcome.
type Result struct {
	Candidates []Candidate

	// Degraded is set when the dense arm failed or timed out and the
	// ranking rests on lexical evidence alone.
	Degraded bool

	// Language is the detected query language ("de" or "en").
	Language string
}
