// internal/document/document.go
//
// Document model: metadata envelope + opaque JSON payload.
//
// Context
// -------
// Every stored unit is one row in the `documents` table: a fixed metadata
// envelope (id, type, owner, status, timestamps) plus an arbitrarily nested
// JSON payload whose shape the store never validates.  The envelope is a
// typed struct; the payload is an opaque map.  The "flattened" wire shape
// (payload fields at the top level beside a `meta` key) is produced by the
// JSON marshaller here, not by the storage layer.
//
// Notes
// -----
//   - Status, TypeID, and UserID are always present on a persisted row.
//   - UserID defaults to the nil UUID when a document has no owner.
//   - Oxford commas, two spaces after periods.
package document

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the small enumerated lifecycle marker carried by every row.
// "Soft delete" via StatusDeleted is a caller convention; DeleteOne on the
// repository removes the row outright.
type Status int16

const (
	StatusActive  Status = 1
	StatusDeleted Status = 2
)

// NilUserID is the sentinel owner for documents without a principal.
var NilUserID = uuid.Nil.String()

// Payload is the opaque, type-specific portion of a document.  The store
// never requires it to conform to a declared shape.
type Payload map[string]any

// Meta is the metadata envelope common to every document.
type Meta struct {
	ID        string    `json:"id,omitempty"`
	TypeID    string    `json:"typeId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Status    Status    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Document is the in-memory unit of storage: envelope, payload fields, and
// the uninterpreted ACL blob carried alongside.
type Document struct {
	Meta   *Meta
	Fields Payload
	ACL    json.RawMessage
}

// New returns a document with defaulted metadata: StatusActive, the nil
// owner sentinel, and the given type identifier.
func New(typeID string) *Document {
	return &Document{
		Meta: &Meta{
			TypeID: typeID,
			UserID: NilUserID,
			Status: StatusActive,
		},
		Fields: Payload{},
	}
}

// MarshalJSON renders the flattened view: payload fields at the top level
// with the envelope under "meta".  A payload key literally named "meta"
// would be shadowed by the envelope and is dropped.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		if k == "meta" {
			continue
		}
		out[k] = v
	}
	out["meta"] = d.Meta
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: the "meta" key populates the
// envelope and every remaining top-level key lands in Fields.
func (d *Document) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if m, ok := raw["meta"]; ok && string(m) != "null" {
		d.Meta = &Meta{}
		if err := json.Unmarshal(m, d.Meta); err != nil {
			return err
		}
		delete(raw, "meta")
	}
	d.Fields = make(Payload, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		d.Fields[k] = val
	}
	return nil
}

// Merge returns a shallow merge of fields over base: keys present in fields
// replace top-level keys in base, nested structures are not deep-merged.
// Mirrors the server-side `payload || patch` expression for callers that
// patch a loaded document in memory before saving it.
func Merge(base, fields Payload) Payload {
	out := make(Payload, len(base)+len(fields))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
