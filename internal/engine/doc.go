// Package engine coordinates execution of interdependent tasks across named
// executors. Workflows are registered once, partitioned into dependency
// groups, and run group by group with bounded concurrency, automatic
// retries, and confidence-gated human review.
package engine
