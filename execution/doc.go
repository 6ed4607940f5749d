// Package execution drives single units of asynchronous work to exactly one
// terminal outcome: succeeded, failed, or canceled.
//
// A Host wraps one producer function and owns its cancellation flag and
// run-once cleanup guard. A StreamHost additionally captures an ordered,
// timestamped event sequence that can be consumed either incrementally via
// Stream or all at once via Wait. Lifecycle observers attach through Hooks;
// every handler is independently optional.
package execution
