package twitter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RecordSource is the read side of the authenticated platform client.
type RecordSource interface {
	Profile(ctx context.Context, account string) (Profile, error)
	Batch(ctx context.Context, account string, batchSize int, cursor string) iter.Seq2[RawRecord, error]
}

// PaginatedBatchCollector pages through an account's timeline, dropping
// reposts and duplicate ids, until a batch brings nothing new.
type PaginatedBatchCollector struct {
	source       RecordSource
	host         string
	account      string
	repostMarker string
	batchSize    int
	limits       Limits
	batchDelay   time.Duration
	pacer        Pacer
	logger       *zap.Logger
}

// NewPaginatedBatchCollector builds a record collector from cfg.Records.
func NewPaginatedBatchCollector(cfg Config, source RecordSource, logger *zap.Logger) *PaginatedBatchCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaginatedBatchCollector{
		source:       source,
		host:         cfg.PlatformHost,
		account:      cfg.Account,
		repostMarker: cfg.RepostMarker,
		batchSize:    cfg.Records.BatchSize,
		limits: Limits{
			MaxItems: cfg.Records.MaxRecords,
			MaxSteps: cfg.Records.MaxBatches,
		},
		batchDelay: cfg.Records.BatchDelay,
		pacer:      RandomPacer{},
		logger:     logger.With(zap.String("account", cfg.Account)),
	}
}

// WithPacer replaces the delay strategy.
func (c *PaginatedBatchCollector) WithPacer(p Pacer) *PaginatedBatchCollector {
	c.pacer = p
	return c
}

// Collect returns the account's posts, newest first.
//
// A batch that adds no new record ends the run successfully. A failed batch
// ends the run with the records gathered so far, or fails with ErrFetch when
// nothing was gathered yet.
func (c *PaginatedBatchCollector) Collect(ctx context.Context) ([]PostRecord, error) {
	profile, err := c.source.Profile(ctx, c.account)
	if err != nil {
		if !errors.Is(err, ErrProfileLookup) {
			err = fmt.Errorf("%w: %s: %w", ErrProfileLookup, c.account, err)
		}
		return nil, err
	}
	c.logger.Info("Collecting posts", zap.Int("expected", profile.ExpectedCount))

	acc := newRecordSet()
	cursor := ""
	for batches := 1; ; batches++ {
		added, last, err := c.absorb(ctx, acc, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, ErrFetch) {
				err = fmt.Errorf("%w: %w", ErrFetch, err)
			}
			if acc.len() == 0 {
				return nil, fmt.Errorf("collect %s: %w", c.account, err)
			}
			c.logger.Warn("Batch failed, continuing with collected posts",
				zap.Int("collected", acc.len()),
				zap.Error(err))
			break
		}

		if added == 0 {
			c.logger.Info("Reached end of timeline", zap.Int("collected", acc.len()))
			break
		}
		if c.limits.full(acc.len()) {
			c.logger.Info("Reached post limit", zap.Int("collected", acc.len()))
			break
		}
		if c.limits.exhausted(batches) {
			c.logger.Info("Reached batch limit", zap.Int("batches", batches))
			break
		}

		cursor = last
		c.logger.Info("Collected posts so far",
			zap.Int("collected", acc.len()),
			zap.Int("expected", profile.ExpectedCount),
			zap.Int("batch", batches))

		if err := c.pacer.Pause(ctx, Fixed(c.batchDelay)); err != nil {
			return nil, err
		}
	}

	records := acc.records
	SortNewestFirst(records)
	return records, nil
}

// CollectAndPersist runs Collect and writes the URL list and the records
// file before returning.
func (c *PaginatedBatchCollector) CollectAndPersist(ctx context.Context, urlsPath, recordsPath string) ([]PostRecord, error) {
	records, err := c.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if err := WriteURLs(urlsPath, records); err != nil {
		return nil, err
	}
	if err := WriteRecords(recordsPath, records); err != nil {
		return nil, err
	}
	c.logger.Info("Saved posts",
		zap.String("records", recordsPath),
		zap.String("urls", urlsPath),
		zap.Int("count", len(records)))
	return records, nil
}

// absorb consumes one batch. It returns the number of new records and the id
// of the last non-repost seen, which is the cursor for the next batch.
// Records absorbed before a mid-batch failure stay in acc.
func (c *PaginatedBatchCollector) absorb(ctx context.Context, acc *recordSet, cursor string) (int, string, error) {
	added, last := 0, ""
	for raw, err := range c.source.Batch(ctx, c.account, c.batchSize, cursor) {
		if err != nil {
			return added, last, err
		}
		if c.isRepost(raw) {
			continue
		}
		if raw.ID == "" {
			c.logger.Warn("Skipping post without id")
			continue
		}
		if c.limits.full(acc.len()) {
			break
		}
		last = raw.ID
		if acc.add(normalizeRecord(raw, c.host, c.account)) {
			added++
		}
	}
	return added, last, nil
}

func (c *PaginatedBatchCollector) isRepost(raw RawRecord) bool {
	if raw.IsRepost {
		return true
	}
	return c.repostMarker != "" && strings.HasPrefix(raw.Text, c.repostMarker)
}

// SortNewestFirst orders records by CreatedAt descending. Records with equal
// timestamps keep their relative order.
func SortNewestFirst(records []PostRecord) {
	slices.SortStableFunc(records, func(a, b PostRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// recordSet keys records by id and remembers arrival order.
type recordSet struct {
	ids     map[string]struct{}
	records []PostRecord
}

func newRecordSet() *recordSet {
	return &recordSet{ids: make(map[string]struct{}), records: []PostRecord{}}
}

func (s *recordSet) add(r PostRecord) bool {
	if _, ok := s.ids[r.ID]; ok {
		return false
	}
	s.ids[r.ID] = struct{}{}
	s.records = append(s.records, r)
	return true
}

func (s *recordSet) len() int {
	return len(s.records)
}
