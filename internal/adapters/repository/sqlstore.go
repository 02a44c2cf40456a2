package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS diagnostics (
	id           TEXT PRIMARY KEY,
	user_id      TEXT    NOT NULL DEFAULT '',
	email        TEXT    NOT NULL,
	organization TEXT    NOT NULL,
	total        INTEGER NOT NULL,
	submitted_at INTEGER NOT NULL,
	payload      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diagnostics_submitted ON diagnostics(submitted_at DESC);

CREATE TABLE IF NOT EXISTS opportunities (
	id                  TEXT PRIMARY KEY,
	diagnostic_id       TEXT    NOT NULL DEFAULT '',
	user_id             TEXT    NOT NULL DEFAULT '',
	client_name         TEXT    NOT NULL,
	client_email        TEXT    NOT NULL,
	organization        TEXT    NOT NULL DEFAULT '',
	archetype_code      TEXT    NOT NULL DEFAULT '',
	priority            TEXT    NOT NULL,
	urgency             INTEGER NOT NULL,
	maturity            INTEGER NOT NULL,
	capacity            INTEGER NOT NULL,
	total               INTEGER NOT NULL,
	stage               TEXT    NOT NULL,
	estimated_value     REAL    NOT NULL,
	close_probability   INTEGER NOT NULL,
	expected_close_date INTEGER,
	next_action         TEXT    NOT NULL DEFAULT '',
	notes               TEXT    NOT NULL DEFAULT '',
	status              TEXT    NOT NULL,
	created_at          INTEGER NOT NULL,
	last_activity_at    INTEGER,
	updated_at          INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_opportunities_diagnostic
	ON opportunities(diagnostic_id) WHERE diagnostic_id <> '';
CREATE INDEX IF NOT EXISTS idx_opportunities_created ON opportunities(created_at DESC);

CREATE TABLE IF NOT EXISTS activities (
	id             TEXT PRIMARY KEY,
	opportunity_id TEXT    NOT NULL REFERENCES opportunities(id),
	type           TEXT    NOT NULL,
	title          TEXT    NOT NULL,
	description    TEXT    NOT NULL DEFAULT '',
	scheduled_at   INTEGER,
	completed      INTEGER NOT NULL DEFAULT 0,
	completed_at   INTEGER,
	result         TEXT    NOT NULL DEFAULT '',
	created_by     TEXT    NOT NULL,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_opportunity ON activities(opportunity_id, created_at DESC);
`

const opportunityColumns = `id, diagnostic_id, user_id, client_name, client_email, organization,
	archetype_code, priority, urgency, maturity, capacity, total, stage,
	estimated_value, close_probability, expected_close_date, next_action, notes,
	status, created_at, last_activity_at, updated_at`

const activityColumns = `id, opportunity_id, type, title, description, scheduled_at,
	completed, completed_at, result, created_by, created_at, updated_at`

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLStore persists records in SQLite through the pure-Go modernc driver.
// Timestamps are stored as UTC unix nanoseconds so ordering is numeric.
type SQLStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	journalMode string
}

// NewSQLStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func NewSQLStore(ctx context.Context, path string, opts ...SQLOption) (*SQLStore, error) {
	s := &SQLStore{busyTimeout: 5 * time.Second, journalMode: "WAL"}
	for _, opt := range opts {
		opt(s)
	}
	if err := checkJournalMode(s.journalMode); err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", path, err)
	}
	// Pragmas are per connection; a single connection also serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = " + s.journalMode,
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("repository: pragma %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: schema: %w", err)
	}
	s.db = db
	return s, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// SaveDiagnostic implements Store.
func (s *SQLStore) SaveDiagnostic(ctx context.Context, d model.Diagnostic) (err error) {
	defer observe("save_diagnostic", time.Now(), &err)

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("repository: encode diagnostic: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics (id, user_id, email, organization, total, submitted_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		d.ID, d.UserID, d.Email, d.Organization, d.TotalScore, toUnix(d.SubmittedAt), string(payload))
	if err != nil {
		return fmt.Errorf("repository: insert diagnostic: %w", err)
	}
	return conflictIfUnchanged(res)
}

// GetDiagnostic implements Store.
func (s *SQLStore) GetDiagnostic(ctx context.Context, id string) (d model.Diagnostic, err error) {
	defer observe("get_diagnostic", time.Now(), &err)

	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM diagnostics WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Diagnostic{}, ErrNotFound
	}
	if err != nil {
		return model.Diagnostic{}, fmt.Errorf("repository: get diagnostic: %w", err)
	}
	return decodeDiagnostic(payload)
}

// ListDiagnostics implements Store.
func (s *SQLStore) ListDiagnostics(ctx context.Context, limit int) (out []model.Diagnostic, err error) {
	defer observe("list_diagnostics", time.Now(), &err)

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM diagnostics ORDER BY submitted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: list diagnostics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out = []model.Diagnostic{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("repository: scan diagnostic: %w", err)
		}
		d, err := decodeDiagnostic(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateOpportunity implements Store.
func (s *SQLStore) CreateOpportunity(ctx context.Context, o model.Opportunity) (err error) {
	defer observe("create_opportunity", time.Now(), &err)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (`+opportunityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`, opportunityArgs(&o)...)
	if err != nil {
		return fmt.Errorf("repository: insert opportunity: %w", err)
	}
	return conflictIfUnchanged(res)
}

// GetOpportunity implements Store.
func (s *SQLStore) GetOpportunity(ctx context.Context, id string) (o model.Opportunity, err error) {
	defer observe("get_opportunity", time.Now(), &err)
	return getOpportunity(ctx, s.db, id)
}

// ListOpportunities implements Store.
func (s *SQLStore) ListOpportunities(ctx context.Context, f model.OpportunityFilter) (out []model.Opportunity, err error) {
	defer observe("list_opportunities", time.Now(), &err)

	if err := checkFilter(f); err != nil {
		return nil, err
	}
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE 1 = 1`
	var args []any
	if f.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(f.Priority))
	}
	if f.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(f.Stage))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit == 0 {
		limit = -1
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: list opportunities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out = []model.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOpportunity implements Store.
func (s *SQLStore) UpdateOpportunity(ctx context.Context, id string, mutate func(*model.Opportunity) error) (o model.Opportunity, err error) {
	defer observe("update_opportunity", time.Now(), &err)

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := getOpportunity(ctx, tx, id)
		if err != nil {
			return err
		}
		next := cur
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID = cur.ID
		next.DiagnosticID = cur.DiagnosticID

		_, err = tx.ExecContext(ctx, `
			UPDATE opportunities SET
				stage = ?, estimated_value = ?, close_probability = ?,
				expected_close_date = ?, next_action = ?, notes = ?, status = ?,
				last_activity_at = ?, updated_at = ?
			WHERE id = ?`,
			string(next.Stage), next.EstimatedValue, next.CloseProbability,
			toNullDate(next.ExpectedCloseDate), next.NextAction, next.Notes, string(next.Status),
			toNullUnix(next.LastActivityAt), toUnix(next.UpdatedAt), id)
		if err != nil {
			return fmt.Errorf("repository: update opportunity: %w", err)
		}
		o = next
		return nil
	})
	if err != nil {
		return model.Opportunity{}, err
	}
	return o, nil
}

// CreateActivity implements Store.
func (s *SQLStore) CreateActivity(ctx context.Context, a model.Activity) (err error) {
	defer observe("create_activity", time.Now(), &err)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM opportunities WHERE id = ?`, a.OpportunityID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("repository: check opportunity: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO activities (`+activityColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`, activityArgs(&a)...)
		if err != nil {
			return fmt.Errorf("repository: insert activity: %w", err)
		}
		return conflictIfUnchanged(res)
	})
}

// GetActivity implements Store.
func (s *SQLStore) GetActivity(ctx context.Context, id string) (a model.Activity, err error) {
	defer observe("get_activity", time.Now(), &err)
	return getActivity(ctx, s.db, id)
}

// ListActivities implements Store.
func (s *SQLStore) ListActivities(ctx context.Context, opportunityID string) (out []model.Activity, err error) {
	defer observe("list_activities", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities
		WHERE opportunity_id = ? ORDER BY created_at DESC, id DESC`, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("repository: list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out = []model.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateActivity implements Store.
func (s *SQLStore) UpdateActivity(ctx context.Context, id string, mutate func(*model.Activity) error) (a model.Activity, err error) {
	defer observe("update_activity", time.Now(), &err)

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := getActivity(ctx, tx, id)
		if err != nil {
			return err
		}
		next := cur
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID = cur.ID
		next.OpportunityID = cur.OpportunityID

		_, err = tx.ExecContext(ctx, `
			UPDATE activities SET
				title = ?, description = ?, scheduled_at = ?, completed = ?,
				completed_at = ?, result = ?, updated_at = ?
			WHERE id = ?`,
			next.Title, next.Description, toNullUnix(next.ScheduledAt), next.Completed,
			toNullUnix(next.CompletedAt), next.Result, toUnix(next.UpdatedAt), id)
		if err != nil {
			return fmt.Errorf("repository: update activity: %w", err)
		}
		a = next
		return nil
	})
	if err != nil {
		return model.Activity{}, err
	}
	return a, nil
}

// Counts implements Store.
func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(1) FROM diagnostics),
		(SELECT COUNT(1) FROM opportunities),
		(SELECT COUNT(1) FROM activities)`).Scan(&c.Diagnostics, &c.Opportunities, &c.Activities)
	if err != nil {
		return Counts{}, fmt.Errorf("repository: counts: %w", err)
	}
	return c, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func getOpportunity(ctx context.Context, q queryer, id string) (model.Opportunity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = ?`, id)
	o, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Opportunity{}, ErrNotFound
	}
	return o, err
}

func getActivity(ctx context.Context, q queryer, id string) (model.Activity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Activity{}, ErrNotFound
	}
	return a, err
}

func opportunityArgs(o *model.Opportunity) []any {
	return []any{
		o.ID, o.DiagnosticID, o.UserID, o.ClientName, o.ClientEmail, o.Organization,
		o.ArchetypeCode, string(o.Priority), o.Urgency, o.Maturity, o.Capacity, o.Total, string(o.Stage),
		o.EstimatedValue, o.CloseProbability, toNullDate(o.ExpectedCloseDate), o.NextAction, o.Notes,
		string(o.Status), toUnix(o.CreatedAt), toNullUnix(o.LastActivityAt), toUnix(o.UpdatedAt),
	}
}

func scanOpportunity(sc scanner) (model.Opportunity, error) {
	var (
		o                      model.Opportunity
		label, stage, status   string
		created, updated       int64
		expectedClose, lastAct sql.NullInt64
	)
	err := sc.Scan(&o.ID, &o.DiagnosticID, &o.UserID, &o.ClientName, &o.ClientEmail, &o.Organization,
		&o.ArchetypeCode, &label, &o.Urgency, &o.Maturity, &o.Capacity, &o.Total, &stage,
		&o.EstimatedValue, &o.CloseProbability, &expectedClose, &o.NextAction, &o.Notes,
		&status, &created, &lastAct, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Opportunity{}, err
	}
	if err != nil {
		return model.Opportunity{}, fmt.Errorf("repository: scan opportunity: %w", err)
	}
	o.Priority = priority.Label(label)
	o.Stage = priority.Stage(stage)
	o.Status = model.Status(status)
	o.CreatedAt = fromUnix(created)
	o.UpdatedAt = fromUnix(updated)
	o.ExpectedCloseDate = fromNullDate(expectedClose)
	o.LastActivityAt = fromNullUnix(lastAct)
	return o, nil
}

func activityArgs(a *model.Activity) []any {
	return []any{
		a.ID, a.OpportunityID, string(a.Type), a.Title, a.Description, toNullUnix(a.ScheduledAt),
		a.Completed, toNullUnix(a.CompletedAt), a.Result, a.CreatedBy, toUnix(a.CreatedAt), toUnix(a.UpdatedAt),
	}
}

func scanActivity(sc scanner) (model.Activity, error) {
	var (
		a                    model.Activity
		typ                  string
		created, updated     int64
		scheduled, completed sql.NullInt64
	)
	err := sc.Scan(&a.ID, &a.OpportunityID, &typ, &a.Title, &a.Description, &scheduled,
		&a.Completed, &completed, &a.Result, &a.CreatedBy, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Activity{}, err
	}
	if err != nil {
		return model.Activity{}, fmt.Errorf("repository: scan activity: %w", err)
	}
	a.Type = model.ActivityType(typ)
	a.CreatedAt = fromUnix(created)
	a.UpdatedAt = fromUnix(updated)
	a.ScheduledAt = fromNullUnix(scheduled)
	a.CompletedAt = fromNullUnix(completed)
	return a, nil
}

func decodeDiagnostic(payload string) (model.Diagnostic, error) {
	var d model.Diagnostic
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return model.Diagnostic{}, fmt.Errorf("repository: decode diagnostic: %w", err)
	}
	return d, nil
}

func conflictIfUnchanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}

func toNullDate(d *model.Date) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return toNullUnix(&d.Time)
}

func fromNullDate(n sql.NullInt64) *model.Date {
	t := fromNullUnix(n)
	if t == nil {
		return nil
	}
	d := model.NewDate(*t)
	return &d
}
