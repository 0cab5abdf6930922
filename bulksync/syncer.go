/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package bulksync copies entities from a relational source into the entity
// store. It runs offline: partitions are copied concurrently, writes are
// upserts, and rows become visible to queries as they land.
package bulksync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/suparena/eserp/datastore"
	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/executor"
	"github.com/suparena/eserp/storagemodels"
)

// Stats summarizes a run.
type Stats struct {
	Partitions int           `json:"partitions"`
	Synced     int64         `json:"synced"`
	Skipped    int64         `json:"skipped"`
	Failed     []string      `json:"failed,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Syncer copies every partition of a Source into a DataStore.
type Syncer struct {
	src  Source
	dst  datastore.DataStore[storagemodels.Entity]
	opts Options

	progressMu sync.Mutex
}

// NewSyncer creates a Syncer.
func NewSyncer(src Source, dst datastore.DataStore[storagemodels.Entity], opts ...Option) *Syncer {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Syncer{src: src, dst: dst, opts: options}
}

// Run copies all partitions. A failed partition stops the run unless the
// error handler elects to continue.
func (s *Syncer) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	partitions, err := s.src.Partitions(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing partitions: %w", err)
	}
	stats.Partitions = len(partitions)

	var synced, skipped atomic.Int64
	var failedMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for _, p := range partitions {
		g.Go(func() error {
			err := s.syncPartition(gctx, p, start, &synced, &skipped)
			if err == nil {
				return nil
			}
			if s.opts.ErrorHandler != nil && s.opts.ErrorHandler(p, err) {
				s.opts.Logger.Warn("partition sync failed, continuing", "partition", p, "error", err)
				failedMu.Lock()
				stats.Failed = append(stats.Failed, p)
				failedMu.Unlock()
				return nil
			}
			return fmt.Errorf("partition %q: %w", p, err)
		})
	}
	err = g.Wait()

	stats.Synced = synced.Load()
	stats.Skipped = skipped.Load()
	stats.Duration = time.Since(start)
	s.opts.Logger.Info("bulk sync finished",
		"partitions", stats.Partitions, "synced", stats.Synced, "skipped", stats.Skipped,
		"failed", len(stats.Failed), "duration", stats.Duration)
	return stats, err
}

func (s *Syncer) syncPartition(ctx context.Context, partition string, start time.Time, synced, skipped *atomic.Int64) error {
	if !executor.ValidTenantID(partition) {
		return errors.NewValidationError("tenantId", fmt.Sprintf("invalid tenant id %q", partition))
	}

	progress := Progress{Partition: partition, StartTime: start}
	after := ""
	for {
		page, err := s.pageWithRetry(ctx, partition, after)
		if err != nil {
			return err
		}

		for _, ent := range page {
			if ent.TenantID != partition {
				s.opts.Logger.Warn("row outside its partition skipped", "partition", partition, "tenant", ent.TenantID, "id", ent.ID)
				skipped.Add(1)
				continue
			}
			if !executor.ValidEntityID(ent.ID) {
				s.opts.Logger.Warn("row with non-canonical id skipped", "partition", partition, "id", ent.ID)
				skipped.Add(1)
				continue
			}
			if err := s.dst.Put(ctx, ent); err != nil {
				return fmt.Errorf("writing entity %q: %w", ent.ID, err)
			}
			progress.ItemsSynced++
			synced.Add(1)
		}

		progress.PagesProcessed++
		if len(page) > 0 {
			after = page[len(page)-1].ID
		}
		progress.LastID = after
		s.report(progress, synced.Load())

		if len(page) < s.opts.PageSize {
			return nil
		}
	}
}

// pageWithRetry reads one page, retrying upstream failures with linear
// backoff.
func (s *Syncer) pageWithRetry(ctx context.Context, partition, after string) ([]storagemodels.Entity, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			s.opts.Logger.Warn("retrying source page", "partition", partition, "after", after, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.RetryBackoff * time.Duration(attempt)):
			}
		}

		page, err := s.src.Page(ctx, partition, after, s.opts.PageSize)
		if err == nil {
			return page, nil
		}
		if !errors.IsUpstreamUnavailable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("source page failed after %d retries: %w", s.opts.MaxRetries, lastErr)
}

func (s *Syncer) report(p Progress, total int64) {
	if s.opts.ProgressHandler == nil {
		return
	}
	if elapsed := time.Since(p.StartTime).Seconds(); elapsed > 0 {
		p.CurrentRate = float64(total) / elapsed
	}
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.opts.ProgressHandler(p)
}
