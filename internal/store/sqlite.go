package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS execution_logs (
	id              TEXT PRIMARY KEY,
	request_id      TEXT NOT NULL,
	tax_id          TEXT,
	conversation_id TEXT,
	operation       TEXT NOT NULL,
	input           TEXT,
	output          TEXT,
	state           TEXT,
	provider        TEXT,
	model           TEXT,
	tokens_used     INTEGER NOT NULL DEFAULT 0,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	success         INTEGER NOT NULL,
	error           TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS search_logs (
	id              TEXT PRIMARY KEY,
	request_id      TEXT,
	conversation_id TEXT,
	search_term     TEXT NOT NULL,
	legal_name      TEXT,
	trade_name      TEXT,
	results_count   INTEGER NOT NULL DEFAULT 0,
	results         TEXT,
	from_cache      INTEGER NOT NULL DEFAULT 0,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	success         INTEGER NOT NULL,
	error           TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_execution_logs_request_id ON execution_logs(request_id);
CREATE INDEX IF NOT EXISTS idx_execution_logs_tax_id ON execution_logs(tax_id);
CREATE INDEX IF NOT EXISTS idx_execution_logs_created_at ON execution_logs(created_at);
CREATE INDEX IF NOT EXISTS idx_search_logs_request_id ON search_logs(request_id);
CREATE INDEX IF NOT EXISTS idx_search_logs_created_at ON search_logs(created_at);
CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LogExecution(ctx context.Context, rec *model.ExecutionRecord) error {
	output, err := nullableJSON(rec.Output)
	if err != nil {
		return err
	}
	state, err := nullableJSON(rec.State)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_logs (id, request_id, tax_id, conversation_id, operation, input, output, state,
			provider, model, tokens_used, duration_ms, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, nullString(rec.TaxID), nullString(rec.ConversationID), string(rec.Operation),
		rec.Input, nullBytes(output), nullBytes(state), rec.Provider, rec.Model,
		rec.TokensUsed, rec.DurationMs, rec.Success, nullString(rec.Error), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert execution %s", rec.RequestID)
}

func (s *SQLiteStore) LogSearch(ctx context.Context, rec *model.SearchRecord) error {
	results, err := nullableJSON(rec.Results)
	if err != nil {
		return err
	}
	if rec.Results == nil {
		results = nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_logs (id, request_id, conversation_id, search_term, legal_name, trade_name,
			results_count, results, from_cache, duration_ms, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.RequestID), nullString(rec.ConversationID), rec.SearchTerm,
		rec.LegalName, nullString(rec.TradeName), rec.ResultsCount, nullBytes(results),
		rec.FromCache, rec.DurationMs, rec.Success, nullString(rec.Error), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert search %s", rec.SearchTerm)
}

func (s *SQLiteStore) LogMessage(ctx context.Context, msg *model.Message) error {
	var meta []byte
	if msg.Metadata != nil {
		var err error
		if meta, err = nullableJSON(msg.Metadata); err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, nullBytes(meta), msg.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert message %s", msg.ConversationID)
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, f ExecutionFilter) ([]model.ExecutionRecord, error) {
	c := &conds{}
	c.addIf("request_id = ?", f.RequestID)
	c.addIf("tax_id = ?", f.TaxID)
	c.addIf("conversation_id = ?", f.ConversationID)
	c.addIf("operation = ?", string(f.Operation))
	tail, args := c.finish("created_at DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, tax_id, conversation_id, operation, input, output, state,
			provider, model, tokens_used, duration_ms, success, error, created_at
		 FROM execution_logs`+tail, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list executions")
	}
	defer rows.Close()

	var out []model.ExecutionRecord
	for rows.Next() {
		var (
			r                            model.ExecutionRecord
			taxID, convID, input, errMsg sql.NullString
			provider, mdl                sql.NullString
			output, state                []byte
			op                           string
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &taxID, &convID, &op, &input, &output, &state,
			&provider, &mdl, &r.TokensUsed, &r.DurationMs, &r.Success, &errMsg, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan execution")
		}
		r.TaxID, r.ConversationID, r.Input, r.Error = taxID.String, convID.String, input.String, errMsg.String
		r.Provider, r.Model = provider.String, mdl.String
		r.Operation = model.Operation(op)
		r.Output, r.State = rawOrNil(output), rawOrNil(state)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate executions")
}

func (s *SQLiteStore) ListSearches(ctx context.Context, f SearchFilter) ([]model.SearchRecord, error) {
	c := &conds{}
	c.addIf("request_id = ?", f.RequestID)
	c.addIf("conversation_id = ?", f.ConversationID)
	if f.Term != "" {
		c.add("search_term LIKE ?", "%"+f.Term+"%")
	}
	tail, args := c.finish("created_at DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, conversation_id, search_term, legal_name, trade_name,
			results_count, results, from_cache, duration_ms, success, error, created_at
		 FROM search_logs`+tail, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list searches")
	}
	defer rows.Close()

	var out []model.SearchRecord
	for rows.Next() {
		var (
			r                                   model.SearchRecord
			reqID, convID, legal, trade, errMsg sql.NullString
			results                             []byte
		)
		if err := rows.Scan(&r.ID, &reqID, &convID, &r.SearchTerm, &legal, &trade,
			&r.ResultsCount, &results, &r.FromCache, &r.DurationMs, &r.Success, &errMsg, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search")
		}
		r.RequestID, r.ConversationID = reqID.String, convID.String
		r.LegalName, r.TradeName, r.Error = legal.String, trade.String, errMsg.String
		if len(results) > 0 {
			if err := json.Unmarshal(results, &r.Results); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal search results")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate searches")
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, metadata, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list messages %s", conversationID)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m    model.Message
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal message metadata")
			}
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate messages")
}

// helpers

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
