package twitter

import "context"

// Collector gathers a bounded, de-duplicated collection for one account.
// Implementations are DomScrollCollector and PaginatedBatchCollector.
type Collector[T any] interface {
	Collect(ctx context.Context) ([]T, error)
}

var (
	_ Collector[PostURL]    = (*DomScrollCollector)(nil)
	_ Collector[PostRecord] = (*PaginatedBatchCollector)(nil)
)
