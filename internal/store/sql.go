package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/waveplanner/internal/core/db"
	"github.com/solatis/waveplanner/internal/types"
)

// timeLayout is fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLStore persists strategies through the named queries in
// internal/core/db/queries/strategies.sql.
type SQLStore struct {
	queries *db.Queries
	now     func() time.Time
}

// NewSQLStore creates a store over loaded queries. The schema must already
// be migrated.
func NewSQLStore(queries *db.Queries) *SQLStore {
	return &SQLStore{
		queries: queries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*SQLStore)(nil)

// strategyRow is the strategies table shape.
type strategyRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Status      string         `db:"status"`
	Rules       string         `db:"rules"`
	Config      string         `db:"config"`
	Model       string         `db:"model"`
	Schedule    sql.NullString `db:"schedule"`
	Version     int64          `db:"version"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (r strategyRow) decode() (*types.Strategy, error) {
	s := &types.Strategy{
		ID:          types.StrategyID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Status:      types.StrategyStatus(r.Status),
		Version:     r.Version,
	}
	if err := json.Unmarshal([]byte(r.Rules), &s.Rules); err != nil {
		return nil, fmt.Errorf("decode rules of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Config), &s.Config); err != nil {
		return nil, fmt.Errorf("decode config of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Model), &s.Model); err != nil {
		return nil, fmt.Errorf("decode model of %s: %w", r.ID, err)
	}
	if r.Schedule.Valid {
		s.Schedule = json.RawMessage(r.Schedule.String)
	}

	var err error
	if s.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (st *SQLStore) Create(ctx context.Context, params CreateParams) (*types.Strategy, error) {
	s, err := newStrategy(params, st.now())
	if err != nil {
		return nil, err
	}

	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return nil, err
	}
	config, err := json.Marshal(s.Config)
	if err != nil {
		return nil, err
	}
	model, err := json.Marshal(s.Model)
	if err != nil {
		return nil, err
	}
	var schedule sql.NullString
	if len(s.Schedule) > 0 {
		schedule = sql.NullString{String: string(s.Schedule), Valid: true}
	}

	_, err = st.queries.Exec(ctx, "create-strategy",
		string(s.ID), s.Name, s.Description, string(s.Status),
		string(rules), string(config), string(model), schedule,
		s.Version, formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert strategy: %w", err)
	}
	return st.Get(ctx, s.ID)
}

func (st *SQLStore) Get(ctx context.Context, id types.StrategyID) (*types.Strategy, error) {
	var s *types.Strategy
	err := st.queries.InTx(ctx, func(q *db.Queries) error {
		var err error
		s, err = getStrategy(ctx, q, id)
		return err
	})
	return s, err
}

func getStrategy(ctx context.Context, q *db.Queries, id types.StrategyID) (*types.Strategy, error) {
	var row strategyRow
	if err := q.Get(ctx, "get-strategy", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get strategy: %w", err)
	}
	s, err := row.decode()
	if err != nil {
		return nil, err
	}
	if err := loadHistory(ctx, q, s); err != nil {
		return nil, err
	}
	return s, nil
}

func loadHistory(ctx context.Context, q *db.Queries, s *types.Strategy) error {
	var docs []string
	if err := q.Select(ctx, "list-strategy-metrics", &docs, string(s.ID)); err != nil {
		return fmt.Errorf("list metrics: %w", err)
	}
	for _, doc := range docs {
		var m types.RunMetrics
		if err := json.Unmarshal([]byte(doc), &m); err != nil {
			return fmt.Errorf("decode metrics of %s: %w", s.ID, err)
		}
		s.History = append(s.History, m)
	}
	if n := len(s.History); n > 0 {
		last := s.History[n-1]
		s.LastMetrics = &last
	}
	return nil
}

func (st *SQLStore) List(ctx context.Context) ([]*types.Strategy, error) {
	var out []*types.Strategy
	err := st.queries.InTx(ctx, func(q *db.Queries) error {
		var rows []strategyRow
		if err := q.Select(ctx, "list-strategies", &rows); err != nil {
			return fmt.Errorf("list strategies: %w", err)
		}
		out = make([]*types.Strategy, 0, len(rows))
		for _, row := range rows {
			s, err := row.decode()
			if err != nil {
				return err
			}
			if err := loadHistory(ctx, q, s); err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

// edit runs a conditional update guarded by the version column.
func (st *SQLStore) edit(ctx context.Context, id types.StrategyID, expectedVersion int64, query string, value any) (*types.Strategy, error) {
	var s *types.Strategy
	err := st.queries.InTx(ctx, func(q *db.Queries) error {
		var current int64
		if err := q.Get(ctx, "get-strategy-version", &current, string(id)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(id)
			}
			return fmt.Errorf("get strategy version: %w", err)
		}
		if err := checkVersion(id, current, expectedVersion); err != nil {
			return err
		}

		res, err := q.Exec(ctx, query, value, formatTime(st.now()), string(id), current)
		if err != nil {
			return fmt.Errorf("update strategy: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update strategy: %w", err)
		}
		if n == 0 {
			// another writer bumped the version between read and update
			return fmt.Errorf("%w: strategy %s changed concurrently", types.ErrVersionConflict, id)
		}

		s, err = getStrategy(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (st *SQLStore) Rename(ctx context.Context, id types.StrategyID, name string, expectedVersion int64) (*types.Strategy, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	return st.edit(ctx, id, expectedVersion, "rename-strategy", name)
}

func (st *SQLStore) UpdateRules(ctx context.Context, id types.StrategyID, seq []types.Condition, expectedVersion int64) (*types.Strategy, error) {
	if seq == nil {
		seq = []types.Condition{}
	}
	rules, err := json.Marshal(seq)
	if err != nil {
		return nil, err
	}
	return st.edit(ctx, id, expectedVersion, "update-strategy-rules", string(rules))
}

func (st *SQLStore) RecordMetrics(ctx context.Context, id types.StrategyID, metrics types.RunMetrics) (*types.Strategy, error) {
	doc, err := json.Marshal(metrics)
	if err != nil {
		return nil, err
	}

	var s *types.Strategy
	err = st.queries.InTx(ctx, func(q *db.Queries) error {
		var version int64
		if err := q.Get(ctx, "get-strategy-version", &version, string(id)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(id)
			}
			return fmt.Errorf("get strategy version: %w", err)
		}

		var seq int
		if err := q.Get(ctx, "next-metrics-seq", &seq, string(id)); err != nil {
			return fmt.Errorf("next metrics seq: %w", err)
		}
		if _, err := q.Exec(ctx, "insert-strategy-metrics", string(id), seq, formatTime(metrics.RunAt), string(doc)); err != nil {
			return fmt.Errorf("insert metrics: %w", err)
		}

		s, err = getStrategy(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
