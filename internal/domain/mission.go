package domain

import (
	"time"
)

// MissionStatus is the lifecycle state of a started mission.
type MissionStatus string

const (
	// StatusInProgress is the only non-terminal state.
	StatusInProgress MissionStatus = "IN_PROGRESS"

	// StatusSuccess and StatusFailure are terminal. A row never leaves them.
	StatusSuccess MissionStatus = "SUCCESS"
	StatusFailure MissionStatus = "FAILURE"
)

// Terminal reports whether the status can no longer change.
func (s MissionStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Valid reports whether s is one of the known statuses.
func (s MissionStatus) Valid() bool {
	return s == StatusInProgress || s.Terminal()
}

// Mission is a catalog entry. Duration is expressed in game years.
type Mission struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Target   string `json:"target"`
	Distance int64  `json:"distance"`
	Cost     int64  `json:"cost"`
	Payout   int64  `json:"payout"`
	Duration int64  `json:"duration"`
}

// User is a player account. Funds never go negative.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Funds     int64     `json:"funds"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserMission is a mission started by a user.
type UserMission struct {
	ID             int64         `json:"id"`
	UserID         int64         `json:"userId"`
	MissionID      int64         `json:"missionId"`
	StartTime      time.Time     `json:"startTime"`
	Status         MissionStatus `json:"status"`
	FuelInvest     int64         `json:"fuelInvest"`
	CrewInvest     int64         `json:"crewInvest"`
	ResearchInvest int64         `json:"researchInvest"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
}

// TotalInvest sums the three investment amounts.
func (um *UserMission) TotalInvest() int64 {
	return um.FuelInvest + um.CrewInvest + um.ResearchInvest
}

// MissionEventKind identifies a journal entry.
type MissionEventKind string

const (
	EventMissionStarted   MissionEventKind = "started"
	EventMissionCompleted MissionEventKind = "completed"
)

// MissionEvent is an append-only journal record of a lifecycle transition.
type MissionEvent struct {
	ID            string           `json:"id"`
	Kind          MissionEventKind `json:"kind"`
	UserMissionID int64            `json:"userMissionId"`
	UserID        int64            `json:"userId"`
	MissionID     int64            `json:"missionId"`
	Status        MissionStatus    `json:"status"`
	FundsAfter    int64            `json:"fundsAfter"`
	CreatedAt     time.Time        `json:"createdAt"`
}
