package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mingyuchen/activity-tracker-go/activity"
)

var _ activity.Store = (*ActivityStore)(nil)

// ActivityStore persists activities.
type ActivityStore struct {
	db *DB
}

// NewActivityStore returns an ActivityStore over db.
func NewActivityStore(db *DB) *ActivityStore { return &ActivityStore{db: db} }

const (
	// date and time columns come back as text so the model can keep the
	// wire format (YYYY-MM-DD, HH:MM:SS) without timezone juggling.
	qActivityColumns = `id, user_id, activity_date::text, title, category, start_time::text, end_time::text, notes, mood, created_at, updated_at`

	qActivityInsert = `
INSERT INTO activities (id, user_id, activity_date, title, category, start_time, end_time, notes, mood)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at;`

	qActivityByID = `
SELECT ` + qActivityColumns + `
FROM activities
WHERE id = $1;`

	qActivityAll = `
SELECT ` + qActivityColumns + `
FROM activities
ORDER BY activity_date, start_time;`

	qActivityByUserAndDate = `
SELECT ` + qActivityColumns + `
FROM activities
WHERE user_id = $1 AND activity_date = $2
ORDER BY start_time;`

	qActivityByIDs = `
SELECT ` + qActivityColumns + `
FROM activities
WHERE id = ANY($1)
ORDER BY activity_date, start_time;`

	qActivityUpdate = `
UPDATE activities
SET activity_date = $2,
    title         = $3,
    category      = $4,
    start_time    = $5,
    end_time      = $6,
    notes         = $7,
    mood          = $8,
    updated_at    = NOW()
WHERE id = $1
RETURNING updated_at;`

	qActivityDelete = `
DELETE FROM activities WHERE id = $1;`
)

// Create inserts a, assigning a fresh ID when unset.
func (s *ActivityStore) Create(ctx context.Context, a *activity.Activity) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := s.db.Pool.QueryRow(ctx, qActivityInsert,
		a.ID, a.UserID, a.ActivityDate, a.Title, a.Category,
		a.StartTime, a.EndTime, a.Notes, a.Mood).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// GetByID looks an activity up by primary key.
func (s *ActivityStore) GetByID(ctx context.Context, id uuid.UUID) (*activity.Activity, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	a := &activity.Activity{}
	if err := scanActivity(s.db.Pool.QueryRow(ctx, qActivityByID, id), a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrNotFound
		}
		return nil, fmt.Errorf("select activity: %w", err)
	}
	return a, nil
}

// ListAll returns every activity, oldest first.
func (s *ActivityStore) ListAll(ctx context.Context) ([]activity.Activity, error) {
	return s.list(ctx, qActivityAll)
}

// ListByUserAndDate returns one user's activities on the given date.
func (s *ActivityStore) ListByUserAndDate(ctx context.Context, userID uuid.UUID, date string) ([]activity.Activity, error) {
	return s.list(ctx, qActivityByUserAndDate, userID, date)
}

// ListByIDs returns the activities matching ids; missing ids are skipped.
func (s *ActivityStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]activity.Activity, error) {
	return s.list(ctx, qActivityByIDs, ids)
}

// Update rewrites the mutable fields of a and refreshes updated_at.
func (s *ActivityStore) Update(ctx context.Context, a *activity.Activity) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	err := s.db.Pool.QueryRow(ctx, qActivityUpdate,
		a.ID, a.ActivityDate, a.Title, a.Category,
		a.StartTime, a.EndTime, a.Notes, a.Mood).
		Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return activity.ErrNotFound
		}
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// Delete removes an activity. Deleting an absent row is a no-op.
func (s *ActivityStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Pool.Exec(ctx, qActivityDelete, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

func (s *ActivityStore) list(ctx context.Context, query string, args ...any) ([]activity.Activity, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []activity.Activity
	for rows.Next() {
		var a activity.Activity
		if err := scanActivity(rows, &a); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanActivity(row pgx.Row, a *activity.Activity) error {
	return row.Scan(
		&a.ID, &a.UserID, &a.ActivityDate, &a.Title, &a.Category,
		&a.StartTime, &a.EndTime, &a.Notes, &a.Mood,
		&a.CreatedAt, &a.UpdatedAt,
	)
}
