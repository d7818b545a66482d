// internal/requestinfo/requestinfo.go
//
// Per-request attribute container and context plumbing.
package requestinfo

import (
	"context"
	"net/url"
	"time"

	"github.com/yanizio/docstore/internal/ua"
)

type ctxKey struct{}

// Geo is the subset of a GeoLite2 city lookup the access logs use.  All
// fields are zero when lookups are disabled or the address is unknown.
type Geo struct {
	IP         string
	CountryISO string
	City       string
}

// RequestInfo aggregates everything the middleware learns about one
// request.  It is read-only after Enrich stores it in the context.
type RequestInfo struct {
	UA        ua.Info
	Geo       Geo
	URL       *url.URL
	Timestamp time.Time
}

// FromContext returns the request's info, or nil outside the middleware.
func FromContext(ctx context.Context) *RequestInfo {
	info, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return info
}
