package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/i474232898/weather-panel/internal/weather"
)

// Snapshot is the message published after each successful refresh.
type Snapshot struct {
	Location    string            `json:"location"`
	Status      string            `json:"status"`
	Variables   weather.Variables `json:"variables"`
	PublishedAt time.Time         `json:"publishedAt"`
}

// Publisher is the subset of Producer used by SnapshotPublisher.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// SnapshotPublisher encodes variable sets and hands them to a Publisher.
type SnapshotPublisher struct {
	pub Publisher
	now func() time.Time
}

func NewSnapshotPublisher(pub Publisher) *SnapshotPublisher {
	return &SnapshotPublisher{pub: pub, now: time.Now}
}

// PublishVariables publishes vars keyed by location.
func (s *SnapshotPublisher) PublishVariables(ctx context.Context, location, status string, vars weather.Variables) error {
	body, err := json.Marshal(Snapshot{
		Location:    location,
		Status:      status,
		Variables:   vars,
		PublishedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.pub.Publish(ctx, location, body)
}
