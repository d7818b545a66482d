// internal/repository/row.go
//
// `documents` table row model and row↔object mapping.
//
// Schema reference (see database.EnsureSchema):
//
//	CREATE TABLE documents (
//	    id         UUID PRIMARY KEY,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    status     SMALLINT    NOT NULL,
//	    type_id    TEXT        NOT NULL,
//	    user_id    UUID        NOT NULL,
//	    acl        JSONB,
//	    payload    JSONB
//	);
//
// Notes
// -----
//   - `acl` and `payload` are nullable; both map to nil slices.
//   - `created_at` and `updated_at` are NOT NULL, so plain time.Time is safe.
//   - Column list must match the fields here; update both together.
package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yanizio/docstore/internal/document"
)

// row mirrors one row in the `documents` table.
type row struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	Status    int16     `db:"status"`
	TypeID    string    `db:"type_id"`
	UserID    string    `db:"user_id"`
	ACL       []byte    `db:"acl"`
	Payload   []byte    `db:"payload"`
}

// document reconstructs the domain object: envelope from the metadata
// columns, payload fields decoded from the JSONB column.
func (r *row) document() (*document.Document, error) {
	d := &document.Document{
		Meta: &document.Meta{
			ID:        r.ID,
			TypeID:    r.TypeID,
			UserID:    r.UserID,
			Status:    document.Status(r.Status),
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		Fields: document.Payload{},
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &d.Fields); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", r.ID, err)
		}
	}
	if len(r.ACL) > 0 {
		d.ACL = json.RawMessage(r.ACL)
	}
	return d, nil
}

// payloadJSON encodes a document's fields for the JSONB column; a nil
// field map stores SQL NULL.
func payloadJSON(fields document.Payload) ([]byte, error) {
	if fields == nil {
		return nil, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}
