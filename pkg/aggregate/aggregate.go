// Package aggregate turns filtered message sequences into the bucketed
// time-series summaries the dashboard charts: message count and token sum
// per fixed-width time bucket.
package aggregate

import (
	"sort"
	"time"

	"lucerna/pkg/models"
)

// Width is a fixed bucket width.
type Width int

const (
	Minute Width = iota
	Hour
	Day
)

func (w Width) Duration() time.Duration {
	switch w {
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

func (w Width) String() string {
	switch w {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	default:
		return "day"
	}
}

// WidthForSpan picks the bucket width for a requested time span:
// up to an hour gets minute buckets, up to a day gets hour buckets,
// anything longer gets day buckets.
func WidthForSpan(span time.Duration) Width {
	switch {
	case span <= time.Hour:
		return Minute
	case span <= 24*time.Hour:
		return Hour
	default:
		return Day
	}
}

// Buckets groups messages by created_at truncated to the bucket width (UTC)
// and returns one tuple per non-empty bucket, ordered by bucket start.
func Buckets(msgs []models.Message, w Width) []models.Bucket {
	if len(msgs) == 0 {
		return nil
	}
	d := w.Duration()
	acc := make(map[time.Time]*models.Bucket)
	for _, m := range msgs {
		start := m.CreatedAt.UTC().Truncate(d)
		b, ok := acc[start]
		if !ok {
			b = &models.Bucket{BucketStart: start}
			acc[start] = b
		}
		b.MessageCount++
		b.TokenSum += int64(m.TokenCount)
	}
	out := make([]models.Bucket, 0, len(acc))
	for _, b := range acc {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart.Before(out[j].BucketStart) })
	return out
}
