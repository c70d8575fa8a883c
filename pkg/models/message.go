package models

import "time"

// Message is the persisted telemetry record for a single LLM chat message.
// Records are immutable once saved; token_count is derived at creation time
// and never recomputed.
type Message struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AggregateID string    `json:"aggregate_id,omitempty"`
	Model       string    `json:"model"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	TokenCount  int       `json:"token_count"`
	// CreatedAt is set by the service in UTC and is the sole time axis for
	// range queries.
	CreatedAt time.Time `json:"created_at"`
}

// MessageIn is the caller-supplied creation input. Identity, timestamp and
// token count are assigned server-side.
type MessageIn struct {
	UserID      string `json:"user_id"`
	AggregateID string `json:"aggregate_id,omitempty"`
	Model       string `json:"model"`
	Role        string `json:"role"`
	Content     string `json:"content"`
}

// Bucket is one time bucket of the aggregation output consumed by the
// dashboard: message count and token sum for messages whose created_at
// falls in [BucketStart, BucketStart+width).
type Bucket struct {
	BucketStart  time.Time `json:"bucket_start"`
	MessageCount int       `json:"message_count"`
	TokenSum     int64     `json:"token_sum"`
}
