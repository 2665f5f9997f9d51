// Program qsolog collects contact broadcasts from contest logging programs on
// the local network and maintains a durable merged QSO log in SQLite. It wires
// together the UDP receiver, the bounded queue, the decode/dedup/persist
// worker, the optional raw-datagram journal, and the diagnostics surface.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	httppprof "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	pprof "runtime/pprof"
	"strings"
	"syscall"
	"time"

	"qsolog/config"
	"qsolog/dedup"
	"qsolog/journal"
	"qsolog/pipeline"
	"qsolog/stats"
	"qsolog/store"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultConfigPath = "collector.yaml"
	envConfigPath     = "QSOLOG_CONFIG_PATH"
	envDiagAddr       = "QSOLOG_DIAG_ADDR"

	// envHeapLogInterval enables periodic heap stats logging (e.g. "60s").
	envHeapLogInterval = "QSOLOG_HEAP_LOG_INTERVAL"
)

// Version will be set at build time
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (falls back to "+envConfigPath+", then built-in defaults)")
	flag.Parse()

	cfg, configSource, err := loadCollectorConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stdout)
	log.SetFlags(0) // the fanout stamps every line itself
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Warning: file logging disabled: %v", logErr)
	}

	runID := uuid.NewString()
	log.Printf("QSO collector v%s starting (run %s)...", Version, runID)
	log.Printf("Loaded configuration from %s", configSource)
	cfg.Print()

	st, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Error opening QSO log database: %v", err)
	}
	defer st.Close()

	guard := dedup.NewGuard(time.Duration(cfg.Dedup.WindowSeconds) * time.Second)
	guard.Start()
	defer guard.Stop()

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path, time.Duration(cfg.Journal.RetentionHours)*time.Hour)
		if err != nil {
			// The journal is an extra; the collector still serves its purpose
			// without it.
			log.Printf("Warning: journal disabled: %v", err)
		} else {
			jnl.Start()
			defer jnl.Close()
			log.Printf("Journaling raw datagrams to %s (retention %dh)", cfg.Journal.Path, cfg.Journal.RetentionHours)
		}
	}

	tracker := stats.NewTracker()
	coord := pipeline.New(pipeline.Options{
		Port:             cfg.Network.Port,
		ReadTimeout:      time.Duration(cfg.Network.ReadTimeoutSeconds) * time.Second,
		MaxDatagramBytes: cfg.Network.MaxDatagramBytes,
		QueueSize:        cfg.Pipeline.QueueSize,
		GracePeriod:      time.Duration(cfg.Pipeline.GracePeriodSeconds) * time.Second,
		Store:            st,
		Guard:            guard,
		Journal:          journalOrNil(jnl),
		Tracker:          tracker,
	})
	if err := coord.Start(); err != nil {
		log.Fatalf("Error starting pipeline: %v", err)
	}

	statsInterval := time.Duration(cfg.Pipeline.StatsIntervalSeconds) * time.Second
	statsStop := make(chan struct{})
	go displayStats(statsInterval, tracker, coord, st, statsStop)

	maybeStartHeapLogger()
	maybeStartDiagServer(cfg.Diag, runID, tracker, coord, st)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Printf("Collector is running for %q. Press Ctrl+C to stop.", cfg.Event.Name)
	log.Printf("Listening for logger broadcasts on UDP port %d...", cfg.Network.Port)
	log.Printf("Statistics will be displayed every %d seconds...", cfg.Pipeline.StatsIntervalSeconds)
	log.Println("---")

	sig := <-sigChan
	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down gracefully...")

	close(statsStop)
	coord.Stop()

	logFinalStats(tracker, st)
	log.Println("Collector stopped")
}

// journalOrNil avoids handing the pipeline a typed nil interface value.
func journalOrNil(jnl *journal.Journal) pipeline.Journaler {
	if jnl == nil {
		return nil
	}
	return jnl
}

// Purpose: Resolve configuration from flag, environment, or defaults.
// Key aspects: An explicitly named file that fails to load is fatal; with no
// explicit path, collector.yaml is used when present, else built-in defaults.
// Upstream: main startup.
// Downstream: config.Load and config.Default.
func loadCollectorConfig(flagPath string) (*config.Config, string, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigPath))
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else {
			return config.Default(), "built-in defaults", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Purpose: Periodically emit ingest counters and log totals.
// Key aspects: Runs on ticker interval until shutdown.
// Upstream: main startup.
// Downstream: stats.Tracker.Snapshot and store report queries.
func displayStats(interval time.Duration, tracker *stats.Tracker, coord *pipeline.Coordinator, st *store.Store, stop chan struct{}) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := tracker.Snapshot()
			log.Printf("Stats: received=%s applied=%s replaced=%s dup=%s rejected=%s deleted=%s queue=%d uptime=%s",
				humanize.Comma(int64(snap.Received)),
				humanize.Comma(int64(snap.Applied)),
				humanize.Comma(int64(snap.Replaced)),
				humanize.Comma(int64(snap.Duplicates)),
				humanize.Comma(int64(snap.Rejected)),
				humanize.Comma(int64(snap.Deleted)),
				coord.QueueDepth(),
				snap.Uptime.Round(time.Second))
			total, err := st.QSOCount()
			if err != nil {
				log.Printf("Warning: log count query failed: %v", err)
				continue
			}
			if last, err := st.LatestQSO(); err == nil && last != nil {
				log.Printf("Log: %s contacts, last %s by %s at %s",
					humanize.Comma(total), last.Call, last.Operator,
					last.Timestamp.UTC().Format("15:04:05"))
			} else {
				log.Printf("Log: %s contacts", humanize.Comma(total))
			}
		}
	}
}

func logFinalStats(tracker *stats.Tracker, st *store.Store) {
	snap := tracker.Snapshot()
	total, err := st.QSOCount()
	if err != nil {
		total = -1
	}
	log.Printf("Final: received=%s applied=%s replaced=%s dup=%s rejected=%s deleted=%s errors=%d logged=%s",
		humanize.Comma(int64(snap.Received)),
		humanize.Comma(int64(snap.Applied)),
		humanize.Comma(int64(snap.Replaced)),
		humanize.Comma(int64(snap.Duplicates)),
		humanize.Comma(int64(snap.Rejected)),
		humanize.Comma(int64(snap.Deleted)),
		snap.PersistErrors+snap.JournalErrors,
		humanize.Comma(total))
}

// statusPayload is the /status response document.
type statusPayload struct {
	RunID      string         `json:"run_id"`
	Version    string         `json:"version"`
	State      string         `json:"state"`
	QueueDepth int            `json:"queue_depth"`
	QSOCount   int64          `json:"qso_count"`
	Preflight  *statusRepair  `json:"preflight,omitempty"`
	Counters   stats.Snapshot `json:"counters"`
}

type statusRepair struct {
	Quarantined    bool   `json:"quarantined"`
	QuarantinePath string `json:"quarantine_path,omitempty"`
}

// maybeStartDiagServer exposes /debug/pprof/*, /metrics, and /status when a
// diagnostics address is configured (config diag.addr or QSOLOG_DIAG_ADDR).
// Default is off.
// Purpose: Optionally start the diagnostics HTTP server.
// Key aspects: Reads config and env, then serves in the background.
// Upstream: main startup.
// Downstream: http.ListenAndServe, net/http/pprof, promhttp.
func maybeStartDiagServer(cfg config.DiagConfig, runID string, tracker *stats.Tracker, coord *pipeline.Coordinator, st *store.Store) {
	addr := strings.TrimSpace(os.Getenv(envDiagAddr))
	if addr == "" {
		addr = strings.TrimSpace(cfg.Addr)
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		payload := statusPayload{
			RunID:      runID,
			Version:    Version,
			State:      coord.State().String(),
			QueueDepth: coord.QueueDepth(),
			Counters:   tracker.Snapshot(),
		}
		if res := st.PreflightResult(); res.Quarantined {
			payload.Preflight = &statusRepair{
				Quarantined:    true,
				QuarantinePath: res.QuarantinePath,
			}
		}
		if n, err := st.QSOCount(); err == nil {
			payload.QSOCount = n
		}
		w.Header().Set("Content-Type", "application/json")
		if err := jsoniter.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("Diagnostics: status encode failed: %v", err)
		}
	})
	// Purpose: Serve a heap dump endpoint that writes a pprof file to disk.
	// Key aspects: Creates diagnostics dir, forces GC, and writes heap profile.
	// Upstream: HTTP /debug/heapdump request.
	// Downstream: os.MkdirAll, os.Create, pprof.WriteHeapProfile.
	mux.HandleFunc("/debug/heapdump", func(w http.ResponseWriter, r *http.Request) {
		ts := time.Now().UTC().Format("2006-01-02T15-04-05Z")
		dir := filepath.Join("data", "diagnostics")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			http.Error(w, fmt.Sprintf("mkdir diagnostics: %v", err), http.StatusInternalServerError)
			return
		}
		path := filepath.Join(dir, fmt.Sprintf("heap-%s.pprof", ts))
		f, err := os.Create(path)
		if err != nil {
			http.Error(w, fmt.Sprintf("create heap dump: %v", err), http.StatusInternalServerError)
			return
		}
		defer f.Close()
		runtime.GC() // collect latest data
		if err := pprof.WriteHeapProfile(f); err != nil {
			http.Error(w, fmt.Sprintf("write heap profile: %v", err), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "heap profile written to %s\n", path)
	})
	mux.Handle("/debug/pprof/", http.HandlerFunc(httppprof.Index))
	mux.Handle("/debug/pprof/cmdline", http.HandlerFunc(httppprof.Cmdline))
	mux.Handle("/debug/pprof/profile", http.HandlerFunc(httppprof.Profile))
	mux.Handle("/debug/pprof/symbol", http.HandlerFunc(httppprof.Symbol))
	mux.Handle("/debug/pprof/trace", http.HandlerFunc(httppprof.Trace))

	go func() {
		log.Printf("Diagnostics server listening on %s (pprof + /metrics + /status)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Diagnostics server error: %v", err)
		}
	}()
}

// maybeStartHeapLogger starts periodic heap logging when QSOLOG_HEAP_LOG_INTERVAL
// is set (e.g., "60s"). Defaults to disabled when the variable is empty or invalid.
func maybeStartHeapLogger() {
	intervalStr := strings.TrimSpace(os.Getenv(envHeapLogInterval))
	if intervalStr == "" {
		return
	}
	interval, err := time.ParseDuration(intervalStr)
	if err != nil || interval <= 0 {
		log.Printf("Heap logger disabled (invalid %s=%q)", envHeapLogInterval, intervalStr)
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		log.Printf("Heap logger enabled (every %s)", interval)
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			log.Printf("Heap: alloc=%.1f MB sys=%.1f MB objects=%d gc=%d",
				bytesToMB(m.HeapAlloc), bytesToMB(m.Sys), m.HeapObjects, m.NumGC)
		}
	}()
}

func bytesToMB(b uint64) float64 {
	return float64(b) / (1024.0 * 1024.0)
}
