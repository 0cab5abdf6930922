/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package bulksync

import (
	"log/slog"
	"time"
)

// Progress reports how far one partition has been copied.
type Progress struct {
	Partition      string    // Partition being copied
	ItemsSynced    int64     // Rows written for this partition so far
	PagesProcessed int       // Source pages read for this partition so far
	LastID         string    // Keyset cursor after the latest page
	StartTime      time.Time // When the run started
	CurrentRate    float64   // Rows per second across the run
}

// Options configures a Syncer.
type Options struct {
	PageSize        int                                  // Rows per source page (default: 500)
	MaxRetries      int                                  // Retry attempts for transient page failures (default: 3)
	RetryBackoff    time.Duration                        // Backoff unit between retries (default: 1s)
	MaxConcurrency  int                                  // Partitions copied in parallel (default: 4)
	ProgressHandler func(Progress)                       // Optional progress callback
	ErrorHandler    func(partition string, err error) bool // Return true to skip the partition and continue
	Logger          *slog.Logger
}

// Option is a functional option for configuring a Syncer.
type Option func(*Options)

// DefaultOptions returns default sync options.
func DefaultOptions() Options {
	return Options{
		PageSize:       500,
		MaxRetries:     3,
		RetryBackoff:   time.Second,
		MaxConcurrency: 4,
		Logger:         slog.New(slog.DiscardHandler),
	}
}

// WithPageSize sets the source page size
func WithPageSize(size int) Option {
	return func(opts *Options) {
		if size > 0 {
			opts.PageSize = size
		}
	}
}

// WithMaxRetries sets the maximum retry attempts
func WithMaxRetries(retries int) Option {
	return func(opts *Options) {
		if retries >= 0 {
			opts.MaxRetries = retries
		}
	}
}

// WithRetryBackoff sets the retry backoff duration
func WithRetryBackoff(backoff time.Duration) Option {
	return func(opts *Options) {
		opts.RetryBackoff = backoff
	}
}

// WithMaxConcurrency sets how many partitions are copied at once
func WithMaxConcurrency(concurrency int) Option {
	return func(opts *Options) {
		if concurrency > 0 {
			opts.MaxConcurrency = concurrency
		}
	}
}

// WithProgressHandler sets a progress callback. Calls are serialized.
func WithProgressHandler(handler func(Progress)) Option {
	return func(opts *Options) {
		opts.ProgressHandler = handler
	}
}

// WithErrorHandler sets a handler that decides whether a failed partition
// stops the run
func WithErrorHandler(handler func(partition string, err error) bool) Option {
	return func(opts *Options) {
		opts.ErrorHandler = handler
	}
}

// WithLogger sets the sync logger
func WithLogger(l *slog.Logger) Option {
	return func(opts *Options) {
		if l != nil {
			opts.Logger = l
		}
	}
}
