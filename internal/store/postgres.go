package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS execution_logs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	request_id      TEXT NOT NULL,
	tax_id          TEXT,
	conversation_id TEXT,
	operation       TEXT NOT NULL,
	input           TEXT,
	output          JSONB,
	state           JSONB,
	provider        TEXT,
	model           TEXT,
	tokens_used     INTEGER NOT NULL DEFAULT 0,
	duration_ms     BIGINT NOT NULL DEFAULT 0,
	success         BOOLEAN NOT NULL,
	error           TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS search_logs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	request_id      TEXT,
	conversation_id TEXT,
	search_term     TEXT NOT NULL,
	legal_name      TEXT,
	trade_name      TEXT,
	results_count   INTEGER NOT NULL DEFAULT 0,
	results         JSONB,
	from_cache      BOOLEAN NOT NULL DEFAULT false,
	duration_ms     BIGINT NOT NULL DEFAULT 0,
	success         BOOLEAN NOT NULL,
	error           TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_execution_logs_request_id ON execution_logs(request_id);
CREATE INDEX IF NOT EXISTS idx_execution_logs_tax_id ON execution_logs(tax_id);
CREATE INDEX IF NOT EXISTS idx_execution_logs_created_at ON execution_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_search_logs_request_id ON search_logs(request_id);
CREATE INDEX IF NOT EXISTS idx_search_logs_created_at ON search_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LogExecution(ctx context.Context, rec *model.ExecutionRecord) error {
	output, err := nullableJSON(rec.Output)
	if err != nil {
		return err
	}
	state, err := nullableJSON(rec.State)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO execution_logs (id, request_id, tax_id, conversation_id, operation, input, output, state,
			provider, model, tokens_used, duration_ms, success, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID, rec.RequestID, textOrNil(rec.TaxID), textOrNil(rec.ConversationID), string(rec.Operation),
		rec.Input, output, state, rec.Provider, rec.Model,
		rec.TokensUsed, rec.DurationMs, rec.Success, textOrNil(rec.Error), rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert execution %s", rec.RequestID)
}

func (s *PostgresStore) LogSearch(ctx context.Context, rec *model.SearchRecord) error {
	var results []byte
	if rec.Results != nil {
		var err error
		if results, err = nullableJSON(rec.Results); err != nil {
			return err
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_logs (id, request_id, conversation_id, search_term, legal_name, trade_name,
			results_count, results, from_cache, duration_ms, success, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, textOrNil(rec.RequestID), textOrNil(rec.ConversationID), rec.SearchTerm,
		rec.LegalName, textOrNil(rec.TradeName), rec.ResultsCount, results,
		rec.FromCache, rec.DurationMs, rec.Success, textOrNil(rec.Error), rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert search %s", rec.SearchTerm)
}

func (s *PostgresStore) LogMessage(ctx context.Context, msg *model.Message) error {
	var meta []byte
	if msg.Metadata != nil {
		var err error
		if meta, err = nullableJSON(msg.Metadata); err != nil {
			return err
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, meta, msg.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert message %s", msg.ConversationID)
}

func (s *PostgresStore) ListExecutions(ctx context.Context, f ExecutionFilter) ([]model.ExecutionRecord, error) {
	c := &conds{dollar: true}
	c.addIf("request_id = ?", f.RequestID)
	c.addIf("tax_id = ?", f.TaxID)
	c.addIf("conversation_id = ?", f.ConversationID)
	c.addIf("operation = ?", string(f.Operation))
	tail, args := c.finish("created_at DESC", f.Limit)

	rows, err := s.pool.Query(ctx,
		`SELECT id, request_id, tax_id, conversation_id, operation, input, output, state,
			provider, model, tokens_used, duration_ms, success, error, created_at
		 FROM execution_logs`+tail, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list executions")
	}
	defer rows.Close()

	var out []model.ExecutionRecord
	for rows.Next() {
		var (
			r                            model.ExecutionRecord
			taxID, convID, input, errMsg *string
			provider, mdl                *string
			output, state                []byte
			op                           string
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &taxID, &convID, &op, &input, &output, &state,
			&provider, &mdl, &r.TokensUsed, &r.DurationMs, &r.Success, &errMsg, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan execution")
		}
		r.TaxID, r.ConversationID, r.Input, r.Error = model.Deref(taxID), model.Deref(convID), model.Deref(input), model.Deref(errMsg)
		r.Provider, r.Model = model.Deref(provider), model.Deref(mdl)
		r.Operation = model.Operation(op)
		r.Output, r.State = rawOrNil(output), rawOrNil(state)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate executions")
}

func (s *PostgresStore) ListSearches(ctx context.Context, f SearchFilter) ([]model.SearchRecord, error) {
	c := &conds{dollar: true}
	c.addIf("request_id = ?", f.RequestID)
	c.addIf("conversation_id = ?", f.ConversationID)
	if f.Term != "" {
		c.add("search_term ILIKE ?", "%"+f.Term+"%")
	}
	tail, args := c.finish("created_at DESC", f.Limit)

	rows, err := s.pool.Query(ctx,
		`SELECT id, request_id, conversation_id, search_term, legal_name, trade_name,
			results_count, results, from_cache, duration_ms, success, error, created_at
		 FROM search_logs`+tail, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list searches")
	}
	defer rows.Close()

	var out []model.SearchRecord
	for rows.Next() {
		var (
			r                                   model.SearchRecord
			reqID, convID, legal, trade, errMsg *string
			results                             []byte
		)
		if err := rows.Scan(&r.ID, &reqID, &convID, &r.SearchTerm, &legal, &trade,
			&r.ResultsCount, &results, &r.FromCache, &r.DurationMs, &r.Success, &errMsg, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan search")
		}
		r.RequestID, r.ConversationID = model.Deref(reqID), model.Deref(convID)
		r.LegalName, r.TradeName, r.Error = model.Deref(legal), model.Deref(trade), model.Deref(errMsg)
		if len(results) > 0 {
			if err := json.Unmarshal(results, &r.Results); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal search results")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate searches")
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, metadata, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list messages %s", conversationID)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m    model.Message
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal message metadata")
			}
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate messages")
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
