// Package activity defines the dated activity record and its persistence
// contract.
package activity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no activity matches the lookup key.
	ErrNotFound = errors.New("activity not found")
	// ErrNotOwner is returned when a caller touches someone else's activity.
	ErrNotOwner = errors.New("activity belongs to another user")
)

// Activity is one logged entry on a user's day. Times are clock times within
// ActivityDate; Mood is a small user-supplied rating.
type Activity struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	ActivityDate string    `json:"activityDate"` // YYYY-MM-DD
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	StartTime    string    `json:"startTime"` // HH:MM
	EndTime      string    `json:"endTime"`   // HH:MM
	Notes        string    `json:"notes"`
	Mood         int16     `json:"mood"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists activities.
type Store interface {
	Create(ctx context.Context, a *Activity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Activity, error)
	ListAll(ctx context.Context) ([]Activity, error)
	ListByUserAndDate(ctx context.Context, userID uuid.UUID, date string) ([]Activity, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Activity, error)
	Update(ctx context.Context, a *Activity) error
	Delete(ctx context.Context, id uuid.UUID) error
}
