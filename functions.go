package main

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"
	"strings"

	"github.com/matishsiao/goInfo"
	"github.com/oschwald/geoip2-golang"
)

func getOsUname() string {
	gi, _ := goInfo.GetInfo()
	platform := gi.Platform
	if platform == "" || strings.ToLower(platform) == "unknown" {
		platform = runtime.GOARCH
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", gi.Kernel, gi.Core, platform))
}

// geoLocator looks up endpoint countries in a MaxMind GeoLite2 Country database
type geoLocator struct {
	db *geoip2.Reader
}

func openGeoLocator(path string) (*geoLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &geoLocator{db: db}, nil
}

// Country returns the 2-letter country code of addr
func (g *geoLocator) Country(addr netip.Addr) (string, error) {
	record, err := g.db.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", err
	}
	code := strings.ToUpper(record.Country.IsoCode)
	if code == "" {
		return "", fmt.Errorf("no country for %s", addr)
	}
	return code, nil
}

func (g *geoLocator) Close() error {
	return g.db.Close()
}
