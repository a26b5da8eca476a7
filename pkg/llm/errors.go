package llm

import "errors"

// ErrRateLimited is returned when the upstream provider rejects the
// request due to quota exhaustion. Callers may retry after backoff.
var ErrRateLimited = errors.New("llm: rate limited by provider")
