// internal/query/order.go
//
// Ordering compiler: an order-by request → one ORDER BY clause.
//
// A request addresses either a metadata column (first path segment only,
// mapped through an allow-list) or a location in the payload (full path).
// With no request, listings default to created_at descending.  An
// unrecognized key-path kind or direction is an error surfaced to the
// caller, never a logged no-op.
package query

import (
	"errors"
	"fmt"
)

// KeyPathKind selects which half of a document an order-by addresses.
type KeyPathKind int

const (
	KeyPathMetadata KeyPathKind = iota
	KeyPathPayload
)

// Direction is the sort direction of an order-by request.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// OrderBy is one sort request.  KeyPath must be non-empty.
type OrderBy struct {
	Kind      KeyPathKind
	KeyPath   []string
	Direction Direction
}

// ErrEmptyKeyPath is returned for an order-by or key-path request with no
// segments.
var ErrEmptyKeyPath = errors.New("key path is empty")

// UnknownKeyPathKindError is returned when an order-by request carries a
// kind outside the recognized set.
type UnknownKeyPathKindError struct {
	Kind KeyPathKind
}

func (e *UnknownKeyPathKindError) Error() string {
	return fmt.Sprintf("unknown order-by key path kind %d", int(e.Kind))
}

// metaColumns maps envelope field names to their columns.  Doubles as the
// allow-list keeping caller-supplied keys out of raw SQL.
var metaColumns = map[string]string{
	"id":        "id",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"status":    "status",
	"typeId":    "type_id",
	"userId":    "user_id",
}

// CompileOrderBy renders the ORDER BY expression (without the keyword) for
// one request.  A nil request yields the created_at descending default.
func CompileOrderBy(alias string, ob *OrderBy) (string, error) {
	if ob == nil {
		return col(alias, "created_at") + " DESC", nil
	}
	if len(ob.KeyPath) == 0 {
		return "", ErrEmptyKeyPath
	}

	var dir string
	switch ob.Direction {
	case Ascending:
		dir = "ASC"
	case Descending:
		dir = "DESC"
	default:
		return "", fmt.Errorf("unknown order-by direction %d", int(ob.Direction))
	}

	switch ob.Kind {
	case KeyPathMetadata:
		column, ok := metaColumns[ob.KeyPath[0]]
		if !ok {
			return "", fmt.Errorf("unknown metadata order-by key %q", ob.KeyPath[0])
		}
		return col(alias, column) + " " + dir, nil
	case KeyPathPayload:
		path, err := JSONBKeyPath(ob.KeyPath)
		if err != nil {
			return "", err
		}
		return col(alias, "payload") + " #> '" + path + "' " + dir, nil
	default:
		return "", &UnknownKeyPathKindError{Kind: ob.Kind}
	}
}
