// internal/api/dtos.go
//
// Request/response shapes for the document endpoints.  Validation uses
// go-playground/validator, mirroring the config loader's approach.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/docstore/internal/document"
	"github.com/yanizio/docstore/internal/query"
)

var validate = validator.New()

// listQuery mirrors the list endpoint's query string.
type listQuery struct {
	ID        string
	UserID    string
	TypeID    string
	Status    int `validate:"gte=0,lte=32767"`
	Limit     int `validate:"gte=0,lte=1000"`
	NextToken string
}

// parseListQuery decodes and validates the query string of a list call.
func parseListQuery(r *http.Request) (*listQuery, error) {
	q := r.URL.Query()
	lq := &listQuery{
		ID:        q.Get("id"),
		UserID:    q.Get("userId"),
		TypeID:    q.Get("typeId"),
		NextToken: q.Get("nextToken"),
	}

	var err error
	if s := q.Get("status"); s != "" {
		if lq.Status, err = strconv.Atoi(s); err != nil {
			return nil, err
		}
	}
	if s := q.Get("limit"); s != "" {
		if lq.Limit, err = strconv.Atoi(s); err != nil {
			return nil, err
		}
	}
	if err := validate.Struct(lq); err != nil {
		return nil, err
	}
	return lq, nil
}

// filter converts the query string into the core's structural filter.
func (lq *listQuery) filter() *query.Filter {
	f := &query.Filter{
		ID:     lq.ID,
		UserID: lq.UserID,
		TypeID: lq.TypeID,
	}
	if lq.Status > 0 {
		st := document.Status(lq.Status)
		f.Status = &st
	}
	return f
}

// page converts the query string into a page request.
func (lq *listQuery) page() *query.Page {
	return &query.Page{Limit: lq.Limit, NextToken: lq.NextToken}
}

// updateRequest carries the partial payload merged into a document.
type updateRequest struct {
	Object document.Payload `json:"object" validate:"required"`
}

// deleteResponse is the delete endpoint's acknowledgment.
type deleteResponse struct {
	Success bool `json:"success"`
}
