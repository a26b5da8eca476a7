package exec

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/search"
)

type scriptedSearcher struct {
	results []*search.ResultSet
	errs    []error
	calls   int
}

func (s *scriptedSearcher) Search(ctx context.Context, query *search.StructuredQuery) (*search.ResultSet, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return &search.ResultSet{}, nil
}

func testQuery() *search.StructuredQuery {
	return &search.StructuredQuery{Index: "sample-sales", Body: map[string]interface{}{}}
}

func TestExecuteRetriesOnceOnTransientFailure(t *testing.T) {
	searcher := &scriptedSearcher{
		errs:    []error{search.ErrTimeout, nil},
		results: []*search.ResultSet{nil, {Total: 3}},
	}
	c := NewCoordinator(searcher, logger.NewNopLogger())

	result, err := c.Execute(context.Background(), testQuery())

	require.NoError(t, err)
	assert.Equal(t, 2, searcher.calls)
	assert.Equal(t, int64(3), result.Total)
}

func TestExecuteFailsAfterSecondTransientFailure(t *testing.T) {
	searcher := &scriptedSearcher{errs: []error{search.ErrTimeout, search.ErrTimeout}}
	c := NewCoordinator(searcher, logger.NewNopLogger())

	_, err := c.Execute(context.Background(), testQuery())

	require.Error(t, err)
	assert.Equal(t, 2, searcher.calls)
	assert.ErrorIs(t, err, search.ErrTimeout)
}

func TestExecuteDoesNotRetryRejectedQuery(t *testing.T) {
	searcher := &scriptedSearcher{
		errs: []error{&search.BadQueryError{StatusCode: http.StatusBadRequest, Reason: "unknown field"}},
	}
	c := NewCoordinator(searcher, logger.NewNopLogger())

	_, err := c.Execute(context.Background(), testQuery())

	require.Error(t, err)
	assert.Equal(t, 1, searcher.calls)

	var badQuery *search.BadQueryError
	assert.ErrorAs(t, err, &badQuery)
}

func TestExecuteEmptyResultIsSuccess(t *testing.T) {
	searcher := &scriptedSearcher{results: []*search.ResultSet{{Total: 0}}}
	c := NewCoordinator(searcher, logger.NewNopLogger())

	result, err := c.Execute(context.Background(), testQuery())

	require.NoError(t, err)
	assert.True(t, result.Empty())
}
