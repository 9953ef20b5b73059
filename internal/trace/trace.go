// Package trace generates short-lived correlation identifiers for log lines.
// Trace ids exist purely for tying together the handful of log lines one
// connect attempt or one login flow produces; they are never sent on the
// wire and carry no meaning to the broker.
package trace

import "github.com/google/uuid"

// NewID returns a fresh correlation id suitable for a logrus "trace_id" field.
func NewID() string {
	return uuid.NewString()
}
