package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Bundle groups every config file the scoring and detection core consumes.
// A Handle swaps the whole Bundle atomically on reload so readers never
// observe a half-updated configuration (Design Notes: "a Config handle
// passed through the call graph; hot-reload by swapping the handle
// atomically").
type Bundle struct {
	Scoring    *ScoringConfig
	PIClubs    *PIClubsConfig
	Registries *FraudulentRegistryConfig
	Scrapped   *ScrappedVesselsConfig
	Corridors  *CorridorsConfig
	Ports      *PortsConfig
}

// Handle is a process-wide, concurrency-safe holder for the current Bundle.
type Handle struct {
	ptr atomic.Pointer[Bundle]
}

// NewHandle creates a Handle pre-loaded with the given bundle.
func NewHandle(b *Bundle) *Handle {
	h := &Handle{}
	h.ptr.Store(b)
	return h
}

// Load returns the currently active Bundle. Safe for concurrent use.
func (h *Handle) Load() *Bundle {
	return h.ptr.Load()
}

// Swap atomically replaces the active Bundle.
func (h *Handle) Swap(b *Bundle) {
	h.ptr.Store(b)
}

// Paths locates every config file on disk relative to a config directory.
type Paths struct {
	Dir string
}

func (p Paths) scoringPath() string    { return p.Dir + "/risk_scoring.yaml" }
func (p Paths) piClubsPath() string    { return p.Dir + "/legitimate_pi_clubs.yaml" }
func (p Paths) registryPath() string   { return p.Dir + "/fraudulent_registries.yaml" }
func (p Paths) scrappedPath() string   { return p.Dir + "/scrapped_vessels.yaml" }
func (p Paths) corridorsPath() string  { return p.Dir + "/corridors.yaml" }
func (p Paths) portsPath() string      { return p.Dir + "/ports.yaml" }

// LoadBundle reads every config file under dir. A missing file or an
// invalid section set is a fatal configuration error (§7): the pipeline
// must not start.
func LoadBundle(paths Paths) (*Bundle, error) {
	scoring, err := LoadScoringConfig(paths.scoringPath())
	if err != nil {
		return nil, err
	}
	piClubs, err := LoadPIClubsConfig(paths.piClubsPath())
	if err != nil {
		return nil, err
	}
	registries, err := LoadFraudulentRegistryConfig(paths.registryPath())
	if err != nil {
		return nil, err
	}
	scrapped, err := LoadScrappedVesselsConfig(paths.scrappedPath())
	if err != nil {
		return nil, err
	}
	corridors, err := LoadCorridorsConfig(paths.corridorsPath())
	if err != nil {
		return nil, err
	}
	ports, err := LoadPortsConfig(paths.portsPath())
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Scoring:    scoring,
		PIClubs:    piClubs,
		Registries: registries,
		Scrapped:   scrapped,
		Corridors:  corridors,
		Ports:      ports,
	}, nil
}

// WatchAndReload watches paths.Dir for changes and reloads the Bundle into
// handle on every write event, logging (not panicking) on a failed reload so
// a single bad edit doesn't take down a running pipeline. onReload, if
// non-nil, runs after every successful swap so callers holding a derived
// cache (corridor/port bounding boxes) can invalidate it.
func WatchAndReload(paths Paths, handle *Handle, logger *zap.Logger, onReload func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(paths.Dir); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				bundle, err := LoadBundle(paths)
				if err != nil {
					logger.Warn("config reload failed, keeping previous bundle",
						zap.String("path", event.Name), zap.Error(err))
					continue
				}
				handle.Swap(bundle)
				logger.Info("config bundle reloaded", zap.String("trigger", event.Name))
				if onReload != nil {
					onReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return watcher, nil
}

// EnvSettings captures feature flags and connection settings sourced from
// the environment via viper (acdtunes-spacetraders style), independent of
// the YAML scoring bundle above.
type EnvSettings struct {
	DatabaseURL     string
	RedisAddr       string
	ConfigDir       string
	HTTPTimeoutMS   int
	AlertWebhookURL string

	// AISStreamAPIKey authenticates the push-feed client (internal/ingest/stream)
	// against aisstream.io. Empty disables the stream subcommand.
	AISStreamAPIKey string
	// PullFeedURL is the HTTP endpoint polled by internal/ingest/httpfeed for
	// the pull-style GeoJSON feed. Empty skips the pull-feed fetch in the
	// external-fetchers step; the watchlist fetch there still runs.
	PullFeedURL string
	// WatchlistDir is the destination directory internal/fetch downloads
	// sanctions/registry watchlist files into.
	WatchlistDir string
	// WatchlistURL is the source URL internal/fetch conditionally GETs.
	WatchlistURL string
	// CacheTTLSeconds bounds how long internal/cache holds a corridor/port
	// bounding-box lookup before it's considered stale.
	CacheTTLSeconds int
}

// LoadEnvSettings binds environment variables through viper, matching the
// teacher's "no fallback for security-sensitive values" stance for
// DatabaseURL while defaulting non-secret operational knobs.
func LoadEnvSettings() EnvSettings {
	v := viper.New()
	v.SetEnvPrefix("RADIANCEFLEET")
	v.AutomaticEnv()
	v.SetDefault("config_dir", "./config")
	v.SetDefault("http_timeout_ms", 30000)
	v.SetDefault("cache_ttl_seconds", 300)
	v.SetDefault("watchlist_dir", "./data/watchlists")

	return EnvSettings{
		DatabaseURL:     v.GetString("database_url"),
		RedisAddr:       v.GetString("redis_addr"),
		ConfigDir:       v.GetString("config_dir"),
		HTTPTimeoutMS:   v.GetInt("http_timeout_ms"),
		AlertWebhookURL: v.GetString("alert_webhook_url"),
		AISStreamAPIKey: v.GetString("ais_stream_api_key"),
		PullFeedURL:     v.GetString("pull_feed_url"),
		WatchlistDir:    v.GetString("watchlist_dir"),
		WatchlistURL:    v.GetString("watchlist_url"),
		CacheTTLSeconds: v.GetInt("cache_ttl_seconds"),
	}
}
