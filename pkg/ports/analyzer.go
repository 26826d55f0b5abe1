package ports

import (
	"context"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Analyzer is the external analysis/recommendation collaborator, consumed
// once at completion time. Its internals are opaque: the engine sends the
// finished payload and merges whatever comes back under the session's
// analysisResult subtree.
//
// Analysis is best-effort. Implementations should bound their own latency;
// any error degrades to completion without enrichment.
type Analyzer interface {
	Analyze(ctx context.Context, payload domain.Payload) (map[string]any, error)
}
