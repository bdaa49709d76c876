package geoip

import (
	"context"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
type Provider struct {
	db       *geoip2.Reader
	resolver *net.Resolver
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db, resolver: net.DefaultResolver}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// CountryCode looks up the ISO country code (e.g., "US", "DE") of a server host.
// Host names are resolved first and the first address is used.
// It returns an empty string if the host cannot be resolved or located.
func (p *Provider) CountryCode(ctx context.Context, host string) string {
	ip := net.ParseIP(host)
	if ip == nil {
		addrs, err := p.resolver.LookupIPAddr(ctx, host)
		if err != nil || len(addrs) == 0 {
			return ""
		}
		ip = addrs[0].IP
	}

	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}
