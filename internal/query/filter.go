// internal/query/filter.go
//
// Filter compiler: structural + advanced filters → one conjunctive
// predicate set.
//
// Context
// -------
// A structural Filter carries partial metadata fields plus a partial
// payload object; an AdvancedFilter carries jsonpath existence predicates,
// an optional full-text query, and raw predicate generators.  Compile
// produces a Predicates value holding `?`-placeholder fragments and their
// arguments, ANDed together in a fixed order:
//
//  1. id, status, userId equality.
//  2. type scoping (filter's typeId, else the bound type's identifier).
//  3. payload containment (`payload @> ?::jsonb`).
//  4. jsonpath existence (`jsonb_path_exists(payload, ?::jsonpath)`).
//  5. full-text match under an allow-listed text search configuration.
//  6. raw predicate fragments, verbatim.
//
// Everything value-shaped rides a bind parameter; the only concatenated
// fragments are raw predicates, which are the caller's contract to keep
// well formed.  Callers rebind `?` to the driver's placeholder style at
// the execution boundary (sqlx.Rebind).  Rebind treats every literal `?`
// as a placeholder, so fragments use the function forms of Postgres's
// `?`-family operators: jsonb_path_exists instead of `@?`, jsonb_exists
// instead of `?`.
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.
package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yanizio/docstore/internal/document"
)

// Filter is the structural filter: any subset of the metadata envelope
// plus a partial payload object matched by containment.
type Filter struct {
	ID      string
	UserID  string
	TypeID  string
	Status  *document.Status
	Payload document.Payload
}

// RawPredicate receives the query's table alias and returns an extra WHERE
// fragment with its bind arguments.  An empty fragment is skipped.  The
// fragment is concatenated verbatim; values must go through args, and a
// literal `?` always means a bind placeholder (use jsonb_exists and
// friends rather than the `?`-family operators).
type RawPredicate func(alias string) (frag string, args []any)

// AdvancedFilter carries the predicates that address the payload's shape
// rather than its metadata.
type AdvancedFilter struct {
	PayloadPaths  []string // jsonpath expressions, e.g. `$.items[*] ? (@.qty > 2)`
	FullText      string
	FullTextLang  string // text search configuration, default "english"
	RawPredicates []RawPredicate
}

// DefaultFullTextLang is used when AdvancedFilter.FullTextLang is empty.
const DefaultFullTextLang = "english"

// fullTextLangs is the allow-list of text search configurations shipped
// with a stock PostgreSQL.  The language tag is structurally part of the
// regconfig cast, so it is validated here instead of trusted.
var fullTextLangs = map[string]bool{
	"simple": true, "arabic": true, "danish": true, "dutch": true,
	"english": true, "finnish": true, "french": true, "german": true,
	"hungarian": true, "indonesian": true, "irish": true, "italian": true,
	"lithuanian": true, "nepali": true, "norwegian": true,
	"portuguese": true, "romanian": true, "russian": true, "spanish": true,
	"swedish": true, "tamil": true, "turkish": true,
}

// Predicates is a compiled conjunction of WHERE fragments.
type Predicates struct {
	frags []string
	args  []any
}

// And appends one fragment and its arguments.
func (p *Predicates) And(frag string, args ...any) {
	p.frags = append(p.frags, frag)
	p.args = append(p.args, args...)
}

// Where renders " WHERE a AND b AND c", or "" when no predicate applies.
func (p *Predicates) Where() string {
	if len(p.frags) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.frags, " AND ")
}

// Args returns the bind arguments in fragment order.
func (p *Predicates) Args() []any { return p.args }

// col qualifies a column with the table alias, or leaves it bare when the
// statement has none (UPDATE and DELETE).
func col(alias, name string) string {
	if alias == "" {
		return name
	}
	return alias + "." + name
}

// CompileFilter turns the structural and advanced filters into one
// Predicates value.  boundType is the identifier of the repository's
// declared type, or "" for a type-agnostic repository.
func CompileFilter(alias, boundType string, f *Filter, af *AdvancedFilter) (*Predicates, error) {
	if f == nil {
		f = &Filter{}
	}
	if af == nil {
		af = &AdvancedFilter{}
	}

	p := &Predicates{}

	if f.ID != "" {
		p.And(col(alias, "id")+" = ?", f.ID)
	}
	if f.Status != nil {
		p.And(col(alias, "status")+" = ?", *f.Status)
	}
	if f.UserID != "" {
		p.And(col(alias, "user_id")+" = ?", f.UserID)
	}

	typeID := boundType
	if f.TypeID != "" {
		typeID = f.TypeID
	}
	if typeID != "" {
		p.And(col(alias, "type_id")+" = ?", typeID)
	}

	if len(f.Payload) > 0 {
		obj, err := json.Marshal(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal containment object: %w", err)
		}
		p.And(col(alias, "payload")+" @> ?::jsonb", string(obj))
	}

	for _, jsp := range af.PayloadPaths {
		p.And("jsonb_path_exists("+col(alias, "payload")+", ?::jsonpath)", jsp)
	}

	if af.FullText != "" {
		lang := af.FullTextLang
		if lang == "" {
			lang = DefaultFullTextLang
		}
		if !fullTextLangs[lang] {
			return nil, fmt.Errorf("full-text language %q is not a known text search configuration", lang)
		}
		p.And(
			"to_tsvector(?::regconfig, "+col(alias, "payload")+") @@ plainto_tsquery(?::regconfig, ?)",
			lang, lang, af.FullText,
		)
	}

	for _, raw := range af.RawPredicates {
		if raw == nil {
			continue
		}
		frag, args := raw(alias)
		if frag != "" {
			p.And(frag, args...)
		}
	}

	return p, nil
}
