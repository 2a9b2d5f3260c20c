// Command fieldconsole is an interactive console for inspecting sampled
// fields: it builds a scene, draws fields as terminal heatmaps, writes
// PNG, HTML and CSV exports and keeps snapshots in SQLite.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/fieldgrid/internal/config"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/monitoring"
	"github.com/banshee-data/fieldgrid/internal/scene"
	"github.com/banshee-data/fieldgrid/internal/storage/sqlite"
	"github.com/banshee-data/fieldgrid/internal/timeutil"
	"github.com/banshee-data/fieldgrid/internal/version"
)

var (
	configPath    = flag.String("config", "", "Field config JSON (default: "+config.DefaultConfigPath+" if present)")
	scenePath     = flag.String("scene", "", "Scene YAML file (default: built-in demo scene)")
	dbPath        = flag.String("db", "", "Snapshot database path, \"none\" to disable (overrides config)")
	metricsListen = flag.String("metrics-listen", "", "Serve prometheus metrics on this address (overrides config)")
	debug         = flag.Bool("debug", false, "Enable the diag and trace log streams")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("fieldconsole: %v", err)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer) error {
	w := monitoring.LogWriters{Ops: os.Stderr}
	if *debug {
		w.Diag, w.Trace = os.Stderr, os.Stderr
	}
	monitoring.SetLogWriters(w)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	be := backend.NewNumeric(backend.WithSeed(cfg.GetSeed()), backend.WithWorkers(cfg.GetWorkers()))
	defaults := scene.Defaults{
		ParticlesPerCell: cfg.GetParticlesPerCell(),
		Distribution:     cfg.GetDistribution(),
		AddOverlapping:   cfg.GetAddOverlapping(),
		Extrapolation:    cfg.GetExtrapolation(),
	}
	var reg *scene.Registry
	if *scenePath != "" {
		reg, err = scene.Load(be, *scenePath, defaults)
	} else {
		reg, err = scene.Default(be, defaults)
	}
	if err != nil {
		return err
	}

	var store *sqlite.SnapshotStore
	path := cfg.GetDatabasePath()
	if *dbPath != "" {
		path = *dbPath
	}
	if path != "none" {
		var db *sql.DB
		if db, err = sqlite.Open(path); err != nil {
			return err
		}
		defer db.Close()
		store = sqlite.NewSnapshotStore(db, be, timeutil.RealClock{})
	}

	addr := cfg.GetMetricsListen()
	if *metricsListen != "" {
		addr = *metricsListen
	}
	if addr != "" {
		srv := serveMetrics(addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	monitoring.Logf("%s: %d fields, snapshots in %q", version.String(), reg.Len(), path)
	c := NewConsole(out, reg, cfg, fsutil.OSFileSystem{}, store)
	return c.Run(ctx, in)
}

// loadConfig reads path, or the default config file when path is empty
// and the file exists, or falls back to built-in defaults.
func loadConfig(path string) (*config.FieldConfig, error) {
	if path != "" {
		return config.LoadFieldConfig(path)
	}
	if (fsutil.OSFileSystem{}).Exists(config.DefaultConfigPath) {
		return config.LoadFieldConfig(config.DefaultConfigPath)
	}
	return config.EmptyFieldConfig(), nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		monitoring.Opsf("serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Opsf("metrics server: %v", err)
		}
	}()
	return srv
}
