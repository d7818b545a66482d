// internal/query/pagination.go
//
// Stateless offset-token pagination.
//
// A Page carries a limit and an opaque next-token; the token is a decimal
// string encoding the offset of the page it continues.  NextToken emits
// `offset + limit` only while `offset + returned < total`, so the last
// page carries no token.  Slice applies the same arithmetic to in-memory
// sources.
package query

import (
	"fmt"
	"strconv"
)

// DefaultLimit applies when a page request carries no limit.
const DefaultLimit = 20

// Page is one page request.  NextToken is empty for the first page.
type Page struct {
	Limit     int
	NextToken string
}

// Result is one page of items plus the count ignoring pagination.
type Result[T any] struct {
	TotalCount int    `json:"totalCount"`
	Items      []T    `json:"items"`
	NextToken  string `json:"nextToken,omitempty"`
}

// BadPageTokenError is returned when a next-token does not parse as a
// non-negative offset.
type BadPageTokenError struct {
	Token string
}

func (e *BadPageTokenError) Error() string {
	return fmt.Sprintf("malformed pagination token %q", e.Token)
}

// Window resolves a page request into (limit, offset).  A nil page means
// the default limit from the start.
func Window(p *Page) (limit, offset int, err error) {
	limit = DefaultLimit
	if p == nil {
		return limit, 0, nil
	}
	if p.Limit > 0 {
		limit = p.Limit
	}
	if p.NextToken != "" {
		offset, err = strconv.Atoi(p.NextToken)
		if err != nil || offset < 0 {
			return 0, 0, &BadPageTokenError{Token: p.NextToken}
		}
	}
	return limit, offset, nil
}

// NextToken derives the token for the page after this one, or "" at the
// end of the results.
func NextToken(offset, returned, total, limit int) string {
	if offset+returned < total {
		return strconv.Itoa(offset + limit)
	}
	return ""
}

// Slice paginates an in-memory slice with the same token discipline as a
// compiled LIMIT/OFFSET query.
func Slice[T any](items []T, p *Page) (*Result[T], error) {
	limit, offset, err := Window(p)
	if err != nil {
		return nil, err
	}
	out := &Result[T]{TotalCount: len(items), Items: []T{}}
	if offset >= len(items) {
		return out, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out.Items = items[offset:end]
	out.NextToken = NextToken(offset, len(out.Items), out.TotalCount, limit)
	return out, nil
}
