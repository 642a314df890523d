package metadata

import (
	"github.com/pkg/errors"
)

// ErrNotLive is returned by Get when no usable record exists for a stream.
// It is an expected condition, not a store failure.
var ErrNotLive = errors.New("stream not live")

// StreamMetadata is the shared per-stream record. Viewers is an activity
// signal bumped on every inbound chunk, not an exact audience count.
type StreamMetadata struct {
	URL       string `json:"url"`
	Viewers   int64  `json:"viewers"`
	UpdatedAt string `json:"updatedAt"`
}
