package exec

import (
	"context"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/search"
)

// Searcher is the slice of the search client the coordinator needs.
type Searcher interface {
	Search(ctx context.Context, query *search.StructuredQuery) (*search.ResultSet, error)
}

// Coordinator executes structured queries with a bounded retry policy:
// one attempt plus exactly one retry on transient failure. A rejected
// query (client error) is surfaced immediately so the orchestrator can
// invoke the synthesizer's degraded path.
type Coordinator struct {
	searcher Searcher
	logger   logger.ILogger
}

func NewCoordinator(searcher Searcher, log logger.ILogger) *Coordinator {
	return &Coordinator{
		searcher: searcher,
		logger:   log,
	}
}

func (c *Coordinator) Execute(ctx context.Context, query *search.StructuredQuery) (*search.ResultSet, error) {
	result, err := c.searcher.Search(ctx, query)
	if err == nil {
		return result, nil
	}
	if !search.IsRetryable(err) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	c.logger.Warn("exec", "transient search failure, retrying once", map[string]interface{}{
		"index": query.Index,
		"error": err.Error(),
	})

	result, retryErr := c.searcher.Search(ctx, query)
	if retryErr != nil {
		return nil, retryErr
	}
	return result, nil
}
