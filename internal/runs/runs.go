package runs

import (
	"context"
	"time"

	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/domain/booking"
)

// Run is a stored orchestration result.
type Run struct {
	ID               string
	ResourceGroup    string
	Mode             string
	SlotHour         int
	OpenAt           *time.Time
	Status           string
	CapacityExceeded bool
	Error            *string
	StartedAt        time.Time
	FinishedAt       time.Time

	Entries []Entry
}

type Entry struct {
	Index        int
	Court        int
	SlotHour     int
	TargetName   string
	TargetHandle string
	Outcome      string
	Detail       string
	DecidedAt    *time.Time
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

// Save stores a result and its entries atomically.
func (r *Repo) Save(ctx context.Context, group string, res booking.Result) error {
	run := FromResult(group, res)
	return r.db.InTx(ctx, func(tx db.Execer) error {
		if err := tx.Exec(ctx, `
INSERT INTO runs(id,resource_group,mode,slot_hour,open_at,status,capacity_exceeded,error,started_at,finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			run.ID, run.ResourceGroup, run.Mode, run.SlotHour, run.OpenAt, run.Status,
			run.CapacityExceeded, run.Error, run.StartedAt, run.FinishedAt,
		); err != nil {
			return err
		}
		for _, e := range run.Entries {
			if err := tx.Exec(ctx, `
INSERT INTO run_entries(run_id,idx,court_id,slot_hour,target_name,target_handle,outcome,detail,decided_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				run.ID, e.Index, e.Court, e.SlotHour, e.TargetName, e.TargetHandle, e.Outcome, e.Detail, e.DecidedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

const runColumns = `id::text,resource_group,mode,slot_hour,open_at,status,capacity_exceeded,error,started_at,finished_at`

func (r *Repo) List(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+runColumns+`
FROM runs
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Get loads one run with its entries in index order.
func (r *Repo) Get(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if err != nil {
		return Run{}, db.WrapNotFound(err)
	}

	rows, err := r.db.Query(ctx, `
SELECT idx,court_id,slot_hour,target_name,target_handle,outcome,detail,decided_at
FROM run_entries
WHERE run_id=$1
ORDER BY idx ASC`, id)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Index, &e.Court, &e.SlotHour, &e.TargetName, &e.TargetHandle, &e.Outcome, &e.Detail, &e.DecidedAt); err != nil {
			return Run{}, err
		}
		run.Entries = append(run.Entries, e)
	}
	return run, rows.Err()
}

func scanRun(row db.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.ResourceGroup, &run.Mode, &run.SlotHour, &run.OpenAt, &run.Status,
		&run.CapacityExceeded, &run.Error, &run.StartedAt, &run.FinishedAt)
	return run, err
}

// FromResult flattens a result into its stored form.
func FromResult(group string, res booking.Result) Run {
	run := Run{
		ID:               res.RunID,
		ResourceGroup:    group,
		Mode:             string(res.Mode),
		SlotHour:         res.Window.SlotHour,
		Status:           string(res.Status()),
		CapacityExceeded: res.CapacityExceeded,
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
	}
	if !res.Window.OpenAt.IsZero() {
		openAt := res.Window.OpenAt
		run.OpenAt = &openAt
	}
	if res.Err != nil {
		msg := res.Err.Error()
		run.Error = &msg
	}
	for i, e := range res.Entries {
		entry := Entry{
			Index:        i,
			Court:        int(e.Request.Court),
			SlotHour:     e.Request.SlotHour,
			TargetName:   e.Target.Name,
			TargetHandle: e.Target.Handle,
			Outcome:      string(e.Outcome),
			Detail:       e.Detail,
		}
		if !e.At.IsZero() {
			at := e.At
			entry.DecidedAt = &at
		}
		run.Entries = append(run.Entries, entry)
	}
	return run
}
