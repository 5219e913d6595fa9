package engine

import (
	"time"

	"github.com/stagehand-dev/stagehand/internal/state"
)

// DefaultReviewThreshold is the confidence below which a task result is
// gated on human review.
const DefaultReviewThreshold = 0.7

// DefaultMaxParallel bounds in-group concurrency for workflows that don't
// set their own limit.
const DefaultMaxParallel = 4

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

// engineOptions holds all optional configuration, only used during
// construction.
type engineOptions struct {
	reviewThreshold float64
	reviewTimeout   time.Duration
	retryDelay      time.Duration
	maxParallel     int
	logger          *DebugLogger
	store           state.RunStore
}

// WithReviewThreshold sets the confidence threshold below which task results
// require human review.
func WithReviewThreshold(threshold float64) Option {
	return func(o *engineOptions) { o.reviewThreshold = threshold }
}

// WithReviewTimeout bounds how long an unresolved review may block a task.
func WithReviewTimeout(d time.Duration) Option {
	return func(o *engineOptions) { o.reviewTimeout = d }
}

// WithRetryDelay sets the fixed wait between execution attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *engineOptions) { o.retryDelay = d }
}

// WithDefaultMaxParallel sets the in-group concurrency bound used when a
// workflow does not specify its own MaxParallel.
func WithDefaultMaxParallel(n int) Option {
	return func(o *engineOptions) { o.maxParallel = n }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithRunStore sets the archive store for finished runs.
func WithRunStore(s state.RunStore) Option {
	return func(o *engineOptions) { o.store = s }
}
