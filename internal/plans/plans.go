package plans

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/domain/booking"
)

const (
	StatusActive  = "active"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Plan is a booking run scheduled for later. The server's scheduler starts it
// at StartAt, shortly before the booking for its slot opens.
type Plan struct {
	ID   int64
	Name string
	// SlotHour is nil for "auto": the hour is resolved when the run starts.
	SlotHour     *int
	DesiredCount int
	StartAt      time.Time

	Status    string
	LastRunID *string
	LastError *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name required")
	}
	if p.DesiredCount < 1 {
		return fmt.Errorf("desired_count must be >= 1")
	}
	if p.StartAt.IsZero() {
		return fmt.Errorf("start_at required")
	}
	if p.SlotHour != nil {
		h := *p.SlotHour
		if h < 0 || h > 23 {
			return fmt.Errorf("slot_hour must be 0-23")
		}
		// The run books the day after it starts, so it must start on the
		// same day the booking opens.
		y, m, d := p.StartAt.Date()
		opening := time.Date(y, m, d, h, 0, 0, 0, p.StartAt.Location())
		if !p.StartAt.Before(opening) {
			return fmt.Errorf("start_at %s is not before the %02d:00 opening", p.StartAt.Format("15:04"), h)
		}
	}
	return nil
}

// Apply overlays the plan on the base run configuration.
func (p Plan) Apply(base booking.RunConfig) booking.RunConfig {
	cfg := base
	cfg.DesiredCount = p.DesiredCount
	if p.SlotHour != nil {
		cfg.Slot = booking.FixedSlot(*p.SlotHour)
	} else {
		cfg.Slot = booking.AutoSlot()
	}
	return cfg.WithDefaults()
}

// StartFor returns the next instant, after now, that is lead before a
// booking opening at slotHour:00 in now's location.
func StartFor(slotHour int, lead time.Duration, now time.Time) time.Time {
	y, m, d := now.Date()
	start := time.Date(y, m, d, slotHour, 0, 0, 0, now.Location()).Add(-lead)
	if !start.After(now) {
		start = time.Date(y, m, d+1, slotHour, 0, 0, 0, now.Location()).Add(-lead)
	}
	return start
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const planColumns = `id,name,slot_hour,desired_count,start_at,status,last_run_id::text,last_error,created_at,updated_at`

func (r *Repo) Create(ctx context.Context, p Plan) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO plans(name,slot_hour,desired_count,start_at,status)
VALUES ($1,$2,$3,$4,'active')
RETURNING id`,
		p.Name, p.SlotHour, p.DesiredCount, p.StartAt,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

func (r *Repo) List(ctx context.Context, limit int) ([]Plan, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+planColumns+`
FROM plans
ORDER BY start_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanPlans(rows)
}

// Due returns active plans whose start time has passed, oldest first.
func (r *Repo) Due(ctx context.Context, now time.Time, limit int) ([]Plan, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+planColumns+`
FROM plans
WHERE status='active'
  AND start_at <= $1
ORDER BY start_at ASC
LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return scanPlans(rows)
}

func (r *Repo) MarkStarted(ctx context.Context, id int64) error {
	return r.db.Exec(ctx, `UPDATE plans SET status='running', updated_at=now() WHERE id=$1`, id)
}

func (r *Repo) MarkFinished(ctx context.Context, id int64, runID string, status string, lastErr *string) error {
	var rid *string
	if runID != "" {
		rid = &runID
	}
	return r.db.Exec(ctx, `UPDATE plans SET status=$2, last_run_id=$3, last_error=$4, updated_at=now() WHERE id=$1`,
		id, status, rid, lastErr)
}

func scanPlans(rows db.Rows) ([]Plan, error) {
	defer rows.Close()
	var out []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(
			&p.ID, &p.Name, &p.SlotHour, &p.DesiredCount, &p.StartAt, &p.Status,
			&p.LastRunID, &p.LastError, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
