// Package mission drives the mission state machine: funds are debited on
// start and payout is credited at most once when an elapsed mission is
// checked.
package mission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/missionctl/orbit/internal/catalog"
	"github.com/missionctl/orbit/internal/domain"
	"github.com/missionctl/orbit/internal/metrics"
)

var tracer = otel.Tracer("github.com/missionctl/orbit/internal/mission")

// Rejection reasons reported to metrics.
const (
	reasonUnknownUser    = "unknown_user"
	reasonUnknownMission = "unknown_mission"
	reasonFunds          = "insufficient_funds"
	reasonInvalid        = "invalid_input"
)

// Service implements the mission lifecycle. Safe for concurrent use; all
// state lives in the repository.
type Service struct {
	repo     domain.Repository
	catalog  *catalog.Catalog
	resolver OutcomeResolver
	bus      domain.EventBus
	metrics  *metrics.Manager
	now      func() time.Time
	timeUnit time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithBus publishes lifecycle events on b.
func WithBus(b domain.EventBus) Option {
	return func(s *Service) {
		s.bus = b
	}
}

// WithMetrics records lifecycle metrics on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTimeUnit sets the wall-clock length of one duration unit.
func WithTimeUnit(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeUnit = d
		}
	}
}

// NewService creates a lifecycle service.
func NewService(repo domain.Repository, c *catalog.Catalog, r OutcomeResolver, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		catalog:  c,
		resolver: r,
		now:      time.Now,
		timeUnit: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartResult is returned by StartMission.
type StartResult struct {
	UserMissionID int64 `json:"user_mission_id"`
	Funds         int64 `json:"funds"`
}

// CheckResult is the state of a user mission after a check.
type CheckResult struct {
	UserMissionID int64                `json:"user_mission_id"`
	MissionID     int64                `json:"mission_id"`
	Status        domain.MissionStatus `json:"status"`
	Remaining     time.Duration        `json:"-"`
	Payout        int64                `json:"payout"`
	Funds         int64                `json:"funds"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
}

// MissionSummary is one row of a user summary.
type MissionSummary struct {
	UserMissionID int64                `json:"id"`
	MissionID     int64                `json:"mission_id"`
	Status        domain.MissionStatus `json:"status"`
	StartTime     time.Time            `json:"start_time"`
	TotalInvest   int64                `json:"total_invest"`
}

// UserSummary is a user with their missions.
type UserSummary struct {
	Username string           `json:"username"`
	Funds    int64            `json:"funds"`
	Missions []MissionSummary `json:"missions"`
}

// EnsureUser creates username with funds unless it already exists.
func (s *Service) EnsureUser(ctx context.Context, username string, funds int64) (*domain.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	u, err = s.repo.CreateUser(ctx, username, funds)
	if errors.Is(err, domain.ErrDuplicate) {
		return s.repo.GetUserByUsername(ctx, username)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("user created", "user_id", u.ID, "username", u.Username, "funds", u.Funds)
	return u, nil
}

// ListMissions returns the catalog.
func (s *Service) ListMissions() []domain.Mission {
	return s.catalog.List()
}

// GetUser returns a user's funds and missions.
func (s *Service) GetUser(ctx context.Context, username string) (*UserSummary, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	ums, err := s.repo.ListUserMissions(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list user missions: %w", err)
	}

	summary := &UserSummary{
		Username: u.Username,
		Funds:    u.Funds,
		Missions: make([]MissionSummary, 0, len(ums)),
	}
	for _, um := range ums {
		summary.Missions = append(summary.Missions, MissionSummary{
			UserMissionID: um.ID,
			MissionID:     um.MissionID,
			Status:        um.Status,
			StartTime:     um.StartTime,
			TotalInvest:   um.TotalInvest(),
		})
	}
	return summary, nil
}

// ListEvents returns a user's journaled lifecycle events, newest first.
func (s *Service) ListEvents(ctx context.Context, username string, limit int) ([]*domain.MissionEvent, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.repo.ListMissionEvents(ctx, u.ID, limit)
}

// PredictRate returns the prediction a mission started with this mix would
// be resolved against. Requires a PredictiveResolver.
func (s *Service) PredictRate(ctx context.Context, missionID, fuel, crew, research int64) (domain.Prediction, error) {
	m, err := s.catalog.Get(missionID)
	if err != nil {
		return domain.Prediction{}, err
	}
	pr, ok := s.resolver.(*PredictiveResolver)
	if !ok {
		return domain.Prediction{}, domain.ErrModelUnavailable
	}
	return pr.Rate(ctx, m, fuel, crew, research), nil
}

// StartMission debits the mission cost and records a new IN_PROGRESS
// mission. Investments are stored as given.
func (s *Service) StartMission(ctx context.Context, username string, missionID, fuel, crew, research int64) (*StartResult, error) {
	ctx, span := tracer.Start(ctx, "mission.StartMission")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.username", username),
		attribute.Int64("mission.id", missionID),
	)

	if fuel < 0 || crew < 0 || research < 0 {
		s.metrics.RecordStartRejected(reasonInvalid)
		return nil, fmt.Errorf("%w: investments must be >= 0", domain.ErrInvalidInput)
	}

	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.RecordStartRejected(reasonUnknownUser)
		}
		return nil, err
	}
	m, err := s.catalog.Get(missionID)
	if err != nil {
		s.metrics.RecordStartRejected(reasonUnknownMission)
		return nil, err
	}
	if u.Funds < m.Cost {
		s.metrics.RecordStartRejected(reasonFunds)
		return nil, fmt.Errorf("user %s: %w", username, domain.ErrInsufficientFunds)
	}

	um := &domain.UserMission{
		UserID:         u.ID,
		MissionID:      m.ID,
		StartTime:      s.now().UTC().Truncate(time.Microsecond),
		Status:         domain.StatusInProgress,
		FuelInvest:     fuel,
		CrewInvest:     crew,
		ResearchInvest: research,
	}

	funds, err := s.repo.StartMission(ctx, um, m.Cost)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			s.metrics.RecordStartRejected(reasonFunds)
		}
		span.RecordError(err)
		return nil, err
	}

	s.metrics.RecordMissionStarted()
	slog.Info("mission started",
		"user_mission_id", um.ID,
		"user_id", u.ID,
		"mission_id", m.ID,
		"cost", m.Cost,
		"funds", funds,
	)
	s.publish(ctx, domain.TopicMissionStarted, um, domain.EventMissionStarted, funds)

	return &StartResult{UserMissionID: um.ID, Funds: funds}, nil
}

// CheckMissionResult returns the state of a user mission, resolving it if
// its duration has elapsed. Repeated and concurrent calls credit the payout
// at most once.
func (s *Service) CheckMissionResult(ctx context.Context, userMissionID int64) (*CheckResult, error) {
	ctx, span := tracer.Start(ctx, "mission.CheckMissionResult")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_mission.id", userMissionID))

	um, err := s.repo.GetUserMission(ctx, userMissionID)
	if err != nil {
		return nil, err
	}
	m, err := s.catalog.Get(um.MissionID)
	if err != nil {
		return nil, err
	}

	if um.Status.Terminal() {
		return s.stored(ctx, um, m)
	}

	now := s.now()
	duration := time.Duration(m.Duration) * s.timeUnit
	if elapsed := now.Sub(um.StartTime); elapsed < duration {
		u, err := s.repo.GetUser(ctx, um.UserID)
		if err != nil {
			return nil, err
		}
		return &CheckResult{
			UserMissionID: um.ID,
			MissionID:     m.ID,
			Status:        domain.StatusInProgress,
			Remaining:     duration - elapsed,
			Funds:         u.Funds,
		}, nil
	}

	status, err := s.resolver.Resolve(ctx, m, um)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve outcome: %w", err)
	}
	if !status.Terminal() {
		return nil, fmt.Errorf("resolver returned non-terminal status %q", status)
	}

	var payout int64
	if status == domain.StatusSuccess {
		payout = m.Payout
	}

	funds, err := s.repo.CompleteMission(ctx, um.ID, status, payout, now)
	if errors.Is(err, domain.ErrAlreadyTerminal) {
		um, err = s.repo.GetUserMission(ctx, userMissionID)
		if err != nil {
			return nil, err
		}
		return s.stored(ctx, um, m)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	completedAt := now.UTC()
	um.Status = status
	um.CompletedAt = &completedAt

	s.metrics.RecordMissionCompleted(string(status), payout)
	span.SetAttributes(attribute.String("user_mission.status", string(status)))
	slog.Info("mission completed",
		"user_mission_id", um.ID,
		"user_id", um.UserID,
		"mission_id", m.ID,
		"status", status,
		"payout", payout,
		"funds", funds,
	)
	s.publish(ctx, domain.TopicMissionCompleted, um, domain.EventMissionCompleted, funds)

	return &CheckResult{
		UserMissionID: um.ID,
		MissionID:     m.ID,
		Status:        status,
		Payout:        payout,
		Funds:         funds,
		CompletedAt:   &completedAt,
	}, nil
}

func (s *Service) stored(ctx context.Context, um *domain.UserMission, m domain.Mission) (*CheckResult, error) {
	u, err := s.repo.GetUser(ctx, um.UserID)
	if err != nil {
		return nil, err
	}
	var payout int64
	if um.Status == domain.StatusSuccess {
		payout = m.Payout
	}
	return &CheckResult{
		UserMissionID: um.ID,
		MissionID:     m.ID,
		Status:        um.Status,
		Payout:        payout,
		Funds:         u.Funds,
		CompletedAt:   um.CompletedAt,
	}, nil
}

// publish is best effort; the store is the source of truth.
func (s *Service) publish(ctx context.Context, topic string, um *domain.UserMission, kind domain.MissionEventKind, funds int64) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(domain.MissionEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		UserMissionID: um.ID,
		UserID:        um.UserID,
		MissionID:     um.MissionID,
		Status:        um.Status,
		FundsAfter:    funds,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		slog.Error("failed to marshal mission event", "error", err)
		return
	}
	if err := s.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish mission event",
			"topic", topic,
			"user_mission_id", um.ID,
			"error", err,
		)
	}
}
