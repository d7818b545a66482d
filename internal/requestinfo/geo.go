// internal/requestinfo/geo.go
//
// Optional GeoLite2 lookup.  InitGeo opens a local mmdb once at boot;
// until then, or when no path is configured, lookupGeo returns only the
// client address.
package requestinfo

import (
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/yanizio/docstore/internal/ua"
)

var (
	geoMu sync.RWMutex
	geoDB *geoip2.Reader
)

// InitGeo opens the GeoLite2 city database at path.  An empty path is a
// no-op, leaving lookups disabled.
func InitGeo(path string) error {
	if path == "" {
		return nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return err
	}
	geoMu.Lock()
	geoDB = db
	geoMu.Unlock()
	zap.S().Infow("geo lookups enabled", "mmdb", path)
	return nil
}

// CloseGeo releases the mmdb reader, if any.
func CloseGeo() {
	geoMu.Lock()
	defer geoMu.Unlock()
	if geoDB != nil {
		_ = geoDB.Close()
		geoDB = nil
	}
}

func lookupGeo(ip net.IP) Geo {
	g := Geo{}
	if ip != nil {
		g.IP = ip.String()
	}

	geoMu.RLock()
	db := geoDB
	geoMu.RUnlock()
	if db == nil || ip == nil {
		return g
	}

	city, err := db.City(ip)
	if err != nil {
		return g
	}
	g.CountryISO = city.Country.IsoCode
	g.City = city.City.Names["en"]
	return g
}

func parseUA(raw string) ua.Info { return ua.Parse(raw) }
