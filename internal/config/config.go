// Package config loads the relay configuration file and keeps the region
// catalog hot-reloaded behind an atomically swapped snapshot.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

// defaultTileServers are the preview tile URL templates used when the config
// file does not override them.
var defaultTileServers = []string{
	"https://editor-tiles-${env}-1.waze.com/tiles/roads/${z}/${x}/${y}/tile.png",
	"https://editor-tiles-${env}-2.waze.com/tiles/roads/${z}/${x}/${y}/tile.png",
	"https://editor-tiles-${env}-3.waze.com/tiles/roads/${z}/${x}/${y}/tile.png",
	"https://editor-tiles-${env}-4.waze.com/tiles/roads/${z}/${x}/${y}/tile.png",
}

// Snapshot is one immutable view of the configuration. Reload builds a new
// Snapshot and swaps a single pointer, so readers never observe a partial
// update.
type Snapshot struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ReloadInterval  time.Duration

	TrackingFile     string
	AllowlistFile    string
	FeatureCacheFile string

	UpstreamBaseURL string
	UpstreamCookie  string
	UpstreamTimeout time.Duration

	TileServers []string

	KafkaBrokers []string
	KafkaTopic   string

	Regions []domain.Region
}

// KafkaEnabled reports whether the closure stream publisher is configured.
func (s *Snapshot) KafkaEnabled() bool {
	return len(s.KafkaBrokers) > 0 && s.KafkaTopic != ""
}

// Provider owns the config file and the current snapshot. Run reloads the
// file on a fixed interval without interrupting in-flight processing.
type Provider struct {
	path   string
	logger *slog.Logger
	snap   atomic.Pointer[Snapshot]
}

// Load reads and validates the config file at path.
func Load(path string, logger *slog.Logger) (*Provider, error) {
	p := &Provider{path: path, logger: logger}
	snap, err := read(path)
	if err != nil {
		return nil, err
	}
	p.snap.Store(snap)
	return p, nil
}

// Snapshot returns the current configuration view.
func (p *Provider) Snapshot() *Snapshot {
	return p.snap.Load()
}

// Run reloads the config file every ReloadInterval until the context is
// cancelled. A failed reload keeps the previous snapshot.
func (p *Provider) Run(ctx context.Context) {
	interval := p.Snapshot().ReloadInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := read(p.path)
			if err != nil {
				p.logger.Error("config reload failed, keeping previous snapshot", "error", err)
				continue
			}
			p.snap.Store(snap)
			p.logger.Debug("config reloaded", "regions", len(snap.Regions))
		}
	}
}

func read(path string) (*Snapshot, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("httpAddr", ":8080")
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "json")
	v.SetDefault("shutdownTimeout", "10s")
	v.SetDefault("reloadInterval", "15s")
	v.SetDefault("trackingFile", "closure_tracking.json")
	v.SetDefault("allowlistFile", "allowlist.json")
	v.SetDefault("featureCacheFile", "feature_cache.json")
	v.SetDefault("upstream.baseUrl", "https://www.waze.com")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("tileServers", defaultTileServers)
	v.SetDefault("kafka.topic", "closure-events")

	// Deployment-level knobs may come from the environment.
	bindings := map[string]string{
		"httpAddr":        "HTTP_ADDR",
		"logLevel":        "LOG_LEVEL",
		"logFormat":       "LOG_FORMAT",
		"shutdownTimeout": "SHUTDOWN_TIMEOUT",
		"upstream.cookie": "UPSTREAM_COOKIE",
		"kafka.brokers":   "KAFKA_BROKERS",
		"kafka.topic":     "KAFKA_TOPIC",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var regions []domain.Region
	if err := v.UnmarshalKey("regions", &regions); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	if err := validateRegions(regions); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		HTTPAddr:         v.GetString("httpAddr"),
		LogLevel:         v.GetString("logLevel"),
		LogFormat:        v.GetString("logFormat"),
		ShutdownTimeout:  v.GetDuration("shutdownTimeout"),
		ReloadInterval:   v.GetDuration("reloadInterval"),
		TrackingFile:     v.GetString("trackingFile"),
		AllowlistFile:    v.GetString("allowlistFile"),
		FeatureCacheFile: v.GetString("featureCacheFile"),
		UpstreamBaseURL:  v.GetString("upstream.baseUrl"),
		UpstreamCookie:   v.GetString("upstream.cookie"),
		UpstreamTimeout:  v.GetDuration("upstream.timeout"),
		TileServers:      v.GetStringSlice("tileServers"),
		KafkaBrokers:     v.GetStringSlice("kafka.brokers"),
		KafkaTopic:       v.GetString("kafka.topic"),
		Regions:          regions,
	}

	if snap.ShutdownTimeout <= 0 {
		return nil, errors.New("shutdownTimeout must be positive")
	}
	if snap.ReloadInterval <= 0 {
		return nil, errors.New("reloadInterval must be positive")
	}
	return snap, nil
}

func validateRegions(regions []domain.Region) error {
	seen := make(map[string]bool, len(regions))
	for i, r := range regions {
		if r.Name == "" {
			return fmt.Errorf("region %d: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("region %q: duplicate name", r.Name)
		}
		seen[r.Name] = true
		if len(r.LocationKeywordsFilter) == 0 {
			return fmt.Errorf("region %q: at least one location keyword is required", r.Name)
		}
		for _, hook := range r.Webhooks {
			if hook.Type != "discord" && hook.Type != "slack" {
				return fmt.Errorf("region %q: unknown webhook type %q", r.Name, hook.Type)
			}
			if hook.URL == "" {
				return fmt.Errorf("region %q: webhook url is required", r.Name)
			}
		}
	}
	return nil
}
