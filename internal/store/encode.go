package store

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// nullableJSON marshals v, returning nil for a nil value so the column is
// stored as NULL.
func nullableJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal json")
	}
	return b, nil
}

// rawOrNil returns b as a json.RawMessage, or nil when the column was NULL.
func rawOrNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

// conds accumulates WHERE clauses with driver-specific placeholders.
type conds struct {
	dollar  bool
	clauses []string
	args    []any
}

func (c *conds) add(clause string, arg any) {
	c.args = append(c.args, arg)
	ph := "?"
	if c.dollar {
		ph = "$" + strconv.Itoa(len(c.args))
	}
	c.clauses = append(c.clauses, strings.Replace(clause, "?", ph, 1))
}

func (c *conds) addIf(clause string, v string) {
	if v != "" {
		c.add(clause, v)
	}
}

// finish renders " WHERE ... ORDER BY ... LIMIT n" and returns the args.
func (c *conds) finish(order string, limit int) (string, []any) {
	var where string
	if len(c.clauses) > 0 {
		where = " WHERE " + strings.Join(c.clauses, " AND ")
	}
	c.args = append(c.args, limitOrDefault(limit))
	ph := "?"
	if c.dollar {
		ph = "$" + strconv.Itoa(len(c.args))
	}
	return where + " ORDER BY " + order + " LIMIT " + ph, c.args
}
