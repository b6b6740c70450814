package geoip

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/seuros/leadtrack/internal/logging"
)

const databaseFile = "GeoLite2-City.mmdb"

// downloadURL is the jsDelivr mirror of the npm geolite2-city package.
var downloadURL = "https://cdn.jsdelivr.net/npm/geolite2-city/GeoLite2-City.mmdb.gz"

// cityReader is the subset of *geoip2.Reader used for lookups.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Locator resolves client IPs to country and city. A Locator without a
// database returns empty strings.
type Locator struct {
	reader cityReader
}

// Open loads dataDir/GeoLite2-City.mmdb, downloading it first when missing
// and download is set. A missing or unreadable database is not an error.
func Open(ctx context.Context, dataDir string, download bool) *Locator {
	log := logging.Named("geoip")
	path := filepath.Join(dataDir, databaseFile)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if !download {
			log.Info("geoip database not found; lookups disabled", zap.String("path", path))
			return &Locator{}
		}
		log.Info("geoip database not found; downloading", zap.String("path", path), zap.String("url", downloadURL))
		if err := downloadDatabase(ctx, path); err != nil {
			log.Warn("geoip database download failed; lookups disabled", zap.Error(err))
			return &Locator{}
		}
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		log.Warn("could not load geoip database; lookups disabled", zap.String("path", path), zap.Error(err))
		return &Locator{}
	}
	log.Info("geoip database loaded", zap.String("path", path))
	return &Locator{reader: reader}
}

// Enabled reports whether a database is loaded.
func (l *Locator) Enabled() bool {
	return l != nil && l.reader != nil
}

// Lookup returns the ISO country code and English city name for ip.
func (l *Locator) Lookup(ipStr string) (country, city string) {
	if !l.Enabled() {
		return "", ""
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", ""
	}
	record, err := l.reader.City(ip)
	if err != nil {
		logging.Named("geoip").Debug("geoip lookup failed", zap.String("ip", ipStr), zap.Error(err))
		return "", ""
	}
	return record.Country.IsoCode, record.City.Names["en"]
}

func (l *Locator) Close() error {
	if l.Enabled() {
		return l.reader.Close()
	}
	return nil
}

func downloadDatabase(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()

	// Write beside the target and rename so a partial file is never opened.
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, gz); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write database: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
