// Package worker journals mission lifecycle events from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/metrics"
)

// Worker subscribes to the lifecycle topics and appends every event to the
// repository journal.
type Worker struct {
	bus     domain.EventBus
	repo    domain.Repository
	metrics *metrics.Manager

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	journaled int64
	failed    int64
}

// Config holds worker configuration.
type Config struct {
	// Topics to journal. Defaults to both lifecycle topics.
	Topics []string
}

// NewWorker creates a new journal worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, m *metrics.Manager) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		repo:    repo,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to every configured topic.
func (w *Worker) Start(cfg Config) error {
	topics := cfg.Topics
	if len(topics) == 0 {
		topics = []string{domain.TopicMissionStarted, domain.TopicMissionCompleted}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, topic := range topics {
		sub, err := w.bus.Subscribe(w.ctx, topic, w.handleMessage)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("journal worker started", "topics", topics)
	return nil
}

// handleMessage decodes a MissionEvent and saves it. The bus message ID is
// used when the event carries none, so redelivery never duplicates a row.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var event domain.MissionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.recordFailure()
		slog.Error("failed to parse mission event",
			"message_id", msg.ID,
			"topic", msg.Topic,
			"error", err,
		)
		return err
	}

	if event.ID == "" {
		event.ID = msg.ID
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Unix(0, msg.Timestamp).UTC()
	}

	if err := w.repo.SaveMissionEvent(ctx, &event); err != nil {
		w.recordFailure()
		slog.Error("failed to journal mission event",
			"event_id", event.ID,
			"user_mission_id", event.UserMissionID,
			"error", err,
		)
		return err
	}

	w.mu.Lock()
	w.journaled++
	w.mu.Unlock()
	w.metrics.RecordEventJournaled()

	slog.Debug("mission event journaled",
		"event_id", event.ID,
		"kind", event.Kind,
		"user_mission_id", event.UserMissionID,
		"status", event.Status,
	)
	return nil
}

func (w *Worker) recordFailure() {
	w.mu.Lock()
	w.failed++
	w.mu.Unlock()
}

// Stop unsubscribes from every topic, letting buffered events be journaled,
// then cancels the handler context.
func (w *Worker) Stop() error {
	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.cancel()

	slog.Info("journal worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Journaled         int64    `json:"journaled"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Journaled:         w.journaled,
		Failed:            w.failed,
	}
}
