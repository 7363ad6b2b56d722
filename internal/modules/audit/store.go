// README: Audit store backed by PostgreSQL. Insert and filtered list only; no updates.
package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"fleetops/internal/infra"
)

type Store struct {
	q infra.Querier
}

func NewStore(q infra.Querier) *Store {
	return &Store{q: q}
}

func (s *Store) Append(ctx context.Context, e *Entry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO audit_entries (action, entity, entity_id, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Action, e.Entity, e.EntityID, e.ActorID, payload, e.CreatedAt,
	)
	return err
}

type Filter struct {
	Entity   string
	EntityID string
	Limit    int
}

func (s *Store) List(ctx context.Context, f Filter) ([]*Entry, error) {
	q := `SELECT id, action, entity, entity_id, actor_id, details, created_at FROM audit_entries`
	args := []any{}
	where := ""
	if f.Entity != "" {
		args = append(args, f.Entity)
		where = ` WHERE entity = $1`
		if f.EntityID != "" {
			args = append(args, f.EntityID)
			where += ` AND entity_id = $2`
		}
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	q += where + ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &e.EntityID, &e.ActorID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &e.Details); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
