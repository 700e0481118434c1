// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/missionctl/orbit/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (r *SQLRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateUser inserts a user with an opening balance.
func (r *SQLRepository) CreateUser(ctx context.Context, username string, funds int64) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if funds < 0 {
		return nil, fmt.Errorf("%w: funds must be >= 0", domain.ErrInvalidInput)
	}

	u := &domain.User{
		Username:  username,
		Funds:     funds,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO users (username, funds, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, r.rebind(query), u.Username, u.Funds, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if r.isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", username, domain.ErrDuplicate)
		}
		return nil, err
	}
	return u, nil
}

// GetUser retrieves a user by ID.
func (r *SQLRepository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := `SELECT id, username, funds, created_at FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, r.rebind(query), userID))
}

// GetUserByUsername retrieves a user by unique username.
func (r *SQLRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT id, username, funds, created_at FROM users WHERE username = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, r.rebind(query), username))
}

func (r *SQLRepository) scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Funds, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveMission inserts a catalog mission and sets its ID.
func (r *SQLRepository) SaveMission(ctx context.Context, m *domain.Mission) error {
	if m.Name == "" {
		return fmt.Errorf("%w: mission name is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO missions (name, target, distance, cost, payout, duration)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, r.rebind(query),
		m.Name, m.Target, m.Distance, m.Cost, m.Payout, m.Duration,
	).Scan(&m.ID)
	if err != nil {
		if r.isUniqueViolation(err) {
			return fmt.Errorf("mission %q: %w", m.Name, domain.ErrDuplicate)
		}
		return err
	}
	return nil
}

// GetMission retrieves a catalog mission by ID.
func (r *SQLRepository) GetMission(ctx context.Context, missionID int64) (*domain.Mission, error) {
	query := `
		SELECT id, name, target, distance, cost, payout, duration
		FROM missions
		WHERE id = ?
	`

	var m domain.Mission
	err := r.db.QueryRowContext(ctx, r.rebind(query), missionID).Scan(
		&m.ID, &m.Name, &m.Target, &m.Distance, &m.Cost, &m.Payout, &m.Duration,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mission %d: %w", missionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMissions returns the whole catalog ordered by ID.
func (r *SQLRepository) ListMissions(ctx context.Context) ([]*domain.Mission, error) {
	query := `
		SELECT id, name, target, distance, cost, payout, duration
		FROM missions
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []*domain.Mission
	for rows.Next() {
		var m domain.Mission
		if err := rows.Scan(&m.ID, &m.Name, &m.Target, &m.Distance, &m.Cost, &m.Payout, &m.Duration); err != nil {
			return nil, err
		}
		missions = append(missions, &m)
	}

	return missions, rows.Err()
}

// StartMission debits cost and inserts um in one transaction. The debit is
// the first statement so the transaction takes the write lock up front.
func (r *SQLRepository) StartMission(ctx context.Context, um *domain.UserMission, cost int64) (int64, error) {
	if um.Status == "" {
		um.Status = domain.StatusInProgress
	}
	if um.Status != domain.StatusInProgress {
		return 0, fmt.Errorf("%w: new user mission must be %s", domain.ErrInvalidInput, domain.StatusInProgress)
	}
	if um.StartTime.IsZero() {
		um.StartTime = time.Now()
	}
	um.StartTime = um.StartTime.UTC()

	var funds int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if funds, err = r.debit(ctx, tx, um.UserID, cost); err != nil {
			return err
		}

		query := `
			INSERT INTO user_missions (
				user_id, mission_id, start_time, status,
				fuel_invest, crew_invest, research_invest
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`
		return tx.QueryRowContext(ctx, r.rebind(query),
			um.UserID, um.MissionID, um.StartTime, string(um.Status),
			um.FuelInvest, um.CrewInvest, um.ResearchInvest,
		).Scan(&um.ID)
	})
	if err != nil {
		return 0, err
	}
	return funds, nil
}

// CompleteMission compare-and-sets a user mission from IN_PROGRESS to
// status and credits payout in the same transaction. Only one caller can win
// the transition; the others get ErrAlreadyTerminal and nothing is credited.
func (r *SQLRepository) CompleteMission(ctx context.Context, userMissionID int64, status domain.MissionStatus, payout int64, at time.Time) (int64, error) {
	if !status.Terminal() {
		return 0, fmt.Errorf("%w: %q is not a terminal status", domain.ErrInvalidInput, status)
	}
	if payout < 0 {
		return 0, fmt.Errorf("%w: payout must be >= 0", domain.ErrInvalidInput)
	}

	var funds int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE user_missions
			SET status = ?, completed_at = ?
			WHERE id = ? AND status = ?
			RETURNING user_id
		`

		var userID int64
		err := tx.QueryRowContext(ctx, r.rebind(query),
			string(status), at.UTC(), userMissionID, string(domain.StatusInProgress),
		).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			var exists int
			err := tx.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM user_missions WHERE id = ?`), userMissionID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("user mission %d: %w", userMissionID, domain.ErrNotFound)
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("user mission %d: %w", userMissionID, domain.ErrAlreadyTerminal)
		}
		if err != nil {
			return err
		}

		if payout > 0 {
			funds, err = r.credit(ctx, tx, userID, payout)
			return err
		}
		funds, err = r.funds(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return funds, nil
}

// GetUserMission retrieves a started mission by ID.
func (r *SQLRepository) GetUserMission(ctx context.Context, userMissionID int64) (*domain.UserMission, error) {
	query := `
		SELECT id, user_id, mission_id, start_time, status,
			   fuel_invest, crew_invest, research_invest, completed_at
		FROM user_missions
		WHERE id = ?
	`

	um, err := scanUserMission(r.db.QueryRowContext(ctx, r.rebind(query), userMissionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user mission %d: %w", userMissionID, domain.ErrNotFound)
	}
	return um, err
}

// ListUserMissions returns a user's missions, oldest first.
func (r *SQLRepository) ListUserMissions(ctx context.Context, userID int64) ([]*domain.UserMission, error) {
	query := `
		SELECT id, user_id, mission_id, start_time, status,
			   fuel_invest, crew_invest, research_invest, completed_at
		FROM user_missions
		WHERE user_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []*domain.UserMission
	for rows.Next() {
		um, err := scanUserMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, um)
	}

	return missions, rows.Err()
}

func scanUserMission(row rowScanner) (*domain.UserMission, error) {
	var um domain.UserMission
	var status string
	var completedAt sql.NullTime

	if err := row.Scan(
		&um.ID, &um.UserID, &um.MissionID, &um.StartTime, &status,
		&um.FuelInvest, &um.CrewInvest, &um.ResearchInvest, &completedAt,
	); err != nil {
		return nil, err
	}

	um.Status = domain.MissionStatus(status)
	um.StartTime = um.StartTime.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		um.CompletedAt = &t
	}
	return &um, nil
}

// SaveMissionEvent appends a journal entry. Saving the same event ID twice
// is a no-op so redelivered events are journaled once.
func (r *SQLRepository) SaveMissionEvent(ctx context.Context, e *domain.MissionEvent) error {
	if e.ID == "" {
		return fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO mission_events (
			id, kind, user_mission_id, user_id, mission_id,
			status, funds_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		e.ID, string(e.Kind), e.UserMissionID, e.UserID, e.MissionID,
		string(e.Status), e.FundsAfter, e.CreatedAt.UTC(),
	)
	return err
}

// ListMissionEvents returns a user's most recent journal entries first.
func (r *SQLRepository) ListMissionEvents(ctx context.Context, userID int64, limit int) ([]*domain.MissionEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, user_mission_id, user_id, mission_id,
			   status, funds_after, created_at
		FROM mission_events
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.MissionEvent
	for rows.Next() {
		var e domain.MissionEvent
		var kind, status string
		if err := rows.Scan(
			&e.ID, &kind, &e.UserMissionID, &e.UserID, &e.MissionID,
			&status, &e.FundsAfter, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Kind = domain.MissionEventKind(kind)
		e.Status = domain.MissionStatus(status)
		events = append(events, &e)
	}

	return events, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) isUniqueViolation(err error) bool {
	if r.driver == "postgres" {
		return isPostgresUniqueViolation(err)
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
