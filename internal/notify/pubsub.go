package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// rankingAlert is the published message envelope.
type rankingAlert struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	ChangeCount int                        `json:"change_count"`
	Changes     []ranking.SignificantChange `json:"changes"`
}

// PubSubNotifier publishes ranking change alerts to a Google Cloud Pub/Sub
// topic. Downstream consumers (mailers, chat bots) subscribe to the topic.
type PubSubNotifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubNotifier connects to Pub/Sub and binds the topic. The topic must
// already exist; this never creates infrastructure.
func NewPubSubNotifier(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSubNotifier, error) {
	if projectID == "" || topicID == "" {
		return nil, errors.New("pubsub notifier: project id and topic id are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub notifier: connect: %w", err)
	}
	return &PubSubNotifier{
		client: client,
		topic:  client.Topic(topicID),
		logger: logger,
	}, nil
}

// Notify publishes the whole batch as a single message and waits for the
// server ack.
func (n *PubSubNotifier) Notify(ctx context.Context, changes []ranking.SignificantChange) error {
	if len(changes) == 0 {
		return nil
	}
	data, err := json.Marshal(rankingAlert{
		GeneratedAt: time.Now().UTC(),
		ChangeCount: len(changes),
		Changes:     changes,
	})
	if err != nil {
		return fmt.Errorf("pubsub notifier: marshal alert: %w", err)
	}

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"kind": "ranking-change"},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("pubsub notifier: publish: %w", err)
	}
	n.logger.Debug("alert published", zap.String("message_id", id), zap.Int("changes", len(changes)))
	return nil
}

// Close flushes outstanding publishes and releases the client.
func (n *PubSubNotifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}
