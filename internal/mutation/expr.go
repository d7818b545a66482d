// internal/mutation/expr.go
//
// Mutation expression builder.
//
// Context
// -------
// An Expr is a server-evaluated formula for the payload column, spliced
// into `UPDATE documents SET payload = <expr>` by the repository.  Because
// the whole read-modify-write happens inside one statement, concurrent
// increments against the same row serialize on the row-level write lock
// and no update is lost; the builder holds no in-process lock.
//
// Expressions reference the payload column unqualified, matching the
// alias-free UPDATE the repository issues.  Values ride bind parameters;
// key paths are validated against the query package's segment grammar
// before they are rendered into the path literal.
//
// Notes
// -----
//   - NULL payloads coalesce to '{}' so the expressions behave on rows
//     that have never carried a payload (NULL || x is NULL in Postgres).
//   - Oxford commas, two spaces after periods.
package mutation

import (
	"encoding/json"
	"fmt"

	"github.com/yanizio/docstore/internal/document"
	"github.com/yanizio/docstore/internal/query"
)

// Expr is one server-side payload expression with its bind arguments.
type Expr struct {
	sql  string
	args []any
}

// SQL returns the expression fragment with `?` placeholders.
func (e Expr) SQL() string { return e.sql }

// Args returns the bind arguments in placeholder order.
func (e Expr) Args() []any { return e.args }

// Concatenate shallow-merges the given partial object into the payload:
// new top-level keys are added, existing ones overwritten, and nested
// structures replaced rather than deep-merged.
func Concatenate(partial document.Payload) (Expr, error) {
	if partial == nil {
		partial = document.Payload{}
	}
	obj, err := json.Marshal(partial)
	if err != nil {
		return Expr{}, fmt.Errorf("marshal merge object: %w", err)
	}
	return Expr{
		sql:  "COALESCE(payload, '{}'::jsonb) || ?::jsonb",
		args: []any{string(obj)},
	}, nil
}

// IncrementIntAt adds delta to the integer at the given key path, treating
// an absent or null value as 0.
func IncrementIntAt(path []string, delta int64) (Expr, error) {
	return incrementAt(path, "bigint", delta)
}

// IncrementFloatAt is IncrementIntAt with floating-point arithmetic and
// floating-point defaulting.
func IncrementFloatAt(path []string, delta float64) (Expr, error) {
	return incrementAt(path, "double precision", delta)
}

func incrementAt(path []string, sqlType string, delta any) (Expr, error) {
	p, err := query.JSONBKeyPath(path)
	if err != nil {
		return Expr{}, err
	}
	expr := fmt.Sprintf(
		"jsonb_set(COALESCE(payload, '{}'::jsonb), '%s', (COALESCE(payload #>> '%s', '0')::%s + ?)::text::jsonb, true)",
		p, p, sqlType,
	)
	return Expr{sql: expr, args: []any{delta}}, nil
}
