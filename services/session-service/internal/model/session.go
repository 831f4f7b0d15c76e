package model

import "time"

const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

type Session struct {
	ID              string
	ClientID        string
	ConsultantID    string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          string
	CancelledAt     *time.Time
	CancelledBy     string
	CancelReason    string
	CreatedAt       time.Time
}
