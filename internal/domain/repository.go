// Package domain defines the core interfaces and types for Orbit.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Every mutation of funds or mission status runs in a single store
// transaction so the two can never be observed out of step.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, username string, funds int64) (*User, error)
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// Funds ledger. Both return the balance after the operation.
	Debit(ctx context.Context, userID int64, amount int64) (int64, error)
	Credit(ctx context.Context, userID int64, amount int64) (int64, error)

	// Mission catalog
	SaveMission(ctx context.Context, mission *Mission) error
	GetMission(ctx context.Context, missionID int64) (*Mission, error)
	ListMissions(ctx context.Context) ([]*Mission, error)

	// StartMission debits cost from the user and inserts um in one
	// transaction. um.ID is set on success. Returns the post-debit funds.
	StartMission(ctx context.Context, um *UserMission, cost int64) (int64, error)

	// CompleteMission moves an IN_PROGRESS row to status and credits payout
	// to its user in one transaction. Returns ErrAlreadyTerminal when the row
	// was not IN_PROGRESS. Returns the user's funds after the transition.
	CompleteMission(ctx context.Context, userMissionID int64, status MissionStatus, payout int64, at time.Time) (int64, error)

	GetUserMission(ctx context.Context, userMissionID int64) (*UserMission, error)
	ListUserMissions(ctx context.Context, userID int64) ([]*UserMission, error)

	// Event journal
	SaveMissionEvent(ctx context.Context, event *MissionEvent) error
	ListMissionEvents(ctx context.Context, userID int64, limit int) ([]*MissionEvent, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `koanf:"driver"`

	// SQLite specific
	SQLitePath string `koanf:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     int    `koanf:"postgres_port"`
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresDB       string `koanf:"postgres_db"`
	PostgresSSLMode  string `koanf:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}
