package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"github.com/mistakeknot/arbiter/internal/core"
	"github.com/mistakeknot/arbiter/internal/glob"
)

//go:embed schema.sql
var schema string

// Store persists reservations in SQLite.
type Store struct {
	db      *sql.DB
	nowFunc func() time.Time
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db, nowFunc: utcNow}, nil
}

func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db, nowFunc: utcNow}, nil
}

func utcNow() time.Time { return time.Now().UTC() }

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateReservation grants a reservation unless an overlapping active
// reservation by another agent blocks it. Overlap is checked in Go because
// pattern intersection is not expressible in SQL.
func (s *Store) CreateReservation(ctx context.Context, r core.Reservation) (*core.Reservation, error) {
	for _, p := range r.Patterns {
		if err := glob.Validate(p); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
	}

	active, err := s.ActiveReservations(ctx, r.Project)
	if err != nil {
		return nil, err
	}
	var conflicts []core.ConflictDetail
	for _, existing := range active {
		if existing.AgentID == r.AgentID {
			continue
		}
		if r.Mode != core.ModeExclusive && existing.Mode != core.ModeExclusive {
			continue
		}
		for _, p := range existing.Patterns {
			if glob.AnyOverlap(r.Patterns, []string{p}) {
				conflicts = append(conflicts, core.ConflictDetail{
					ReservationID: existing.ID,
					AgentID:       existing.AgentID,
					Pattern:       p,
					Mode:          existing.Mode,
					ExpiresAt:     existing.ExpiresAt,
				})
				break
			}
		}
	}
	if len(conflicts) > 0 {
		return nil, &core.ConflictError{Conflicts: conflicts}
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.TTL <= 0 {
		r.TTL = 30 * time.Minute
	}
	now := s.nowFunc()
	r.CreatedAt = now
	r.ExpiresAt = now.Add(r.TTL)

	patternsJSON, _ := json.Marshal(r.Patterns)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reservations (id, agent_id, project, patterns_json, mode, reason, task_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AgentID, r.Project, string(patternsJSON), string(r.Mode), r.Reason, r.TaskID,
		r.CreatedAt.Format(time.RFC3339Nano), r.ExpiresAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	return &r, nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (*core.Reservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, project, patterns_json, mode, reason, task_id, created_at, expires_at, released_at
		 FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

func (s *Store) ReleaseReservation(ctx context.Context, id, agentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET released_at = ? WHERE id = ? AND agent_id = ? AND released_at IS NULL`,
		s.nowFunc().Format(time.RFC3339Nano), id, agentID)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) AgentReservations(ctx context.Context, project, agentID string) ([]core.Reservation, error) {
	query := `SELECT id, agent_id, project, patterns_json, mode, reason, task_id, created_at, expires_at, released_at
		 FROM reservations WHERE agent_id = ? AND released_at IS NULL AND expires_at > ?`
	args := []any{agentID, s.nowFunc().Format(time.RFC3339Nano)}
	if project != "" {
		query += ` AND project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY created_at ASC`
	return s.queryReservations(ctx, query, args...)
}

func (s *Store) ActiveReservations(ctx context.Context, project string) ([]core.Reservation, error) {
	return s.queryReservations(ctx,
		`SELECT id, agent_id, project, patterns_json, mode, reason, task_id, created_at, expires_at, released_at
		 FROM reservations WHERE project = ? AND released_at IS NULL AND expires_at > ?
		 ORDER BY created_at ASC`,
		project, s.nowFunc().Format(time.RFC3339Nano))
}

// SweepExpired deletes reservations whose expiry passed before the cutoff
// and returns what was removed so callers can notify.
func (s *Store) SweepExpired(ctx context.Context, expiredBefore time.Time) ([]core.Reservation, error) {
	expired, err := s.queryReservations(ctx,
		`SELECT id, agent_id, project, patterns_json, mode, reason, task_id, created_at, expires_at, released_at
		 FROM reservations WHERE released_at IS NULL AND expires_at <= ?`,
		expiredBefore.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	for _, r := range expired {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, r.ID); err != nil {
			return nil, fmt.Errorf("delete expired reservation: %w", err)
		}
	}
	return expired, nil
}

func (s *Store) queryReservations(ctx context.Context, query string, args ...any) ([]core.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []core.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*core.Reservation, error) {
	var (
		r                    core.Reservation
		patternsJSON, mode   string
		createdAt, expiresAt string
		releasedAt           sql.NullString
	)
	if err := row.Scan(&r.ID, &r.AgentID, &r.Project, &patternsJSON, &mode, &r.Reason, &r.TaskID, &createdAt, &expiresAt, &releasedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(patternsJSON), &r.Patterns)
	r.Mode = core.ReservationMode(mode)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
	if releasedAt.Valid {
		parsed, _ := time.Parse(time.RFC3339Nano, releasedAt.String)
		r.ReleasedAt = &parsed
	}
	return &r, nil
}
