// Command theaterd runs the virtual-actor runtime as a cluster node: it
// loads configuration, joins cluster membership, and serves the debug and
// metrics HTTP endpoints until terminated. Its wiring is grounded on
// cmd/alertmanager/main.go (kingpin flag parsing, prometheus registration,
// promhttp-served /metrics) adapted from go-kit/kingpin.v2 to the modern
// alecthomas/kingpin/v2 + log/slog the rest of this module uses, and on
// inhibit.go's use of oklog/run.Group for goroutine lifecycle management.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/config"
	"github.com/squaregear/theater/launcher"
	"github.com/squaregear/theater/persist"
	"github.com/squaregear/theater/persist/badgerstore"
	"github.com/squaregear/theater/persist/memstore"
	"github.com/squaregear/theater/router"
	"github.com/squaregear/theater/stopper"
	"github.com/squaregear/theater/theaterlog"
)

var (
	configFile = kingpin.Flag("config.file", "Path to the YAML configuration file.").Default("theater.yml").String()
	debugAddr  = kingpin.Flag("web.listen-address", "Address to serve /metrics and /debug/registry on.").Default(":9190").String()
)

func main() {
	kingpin.Version(version())
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	// Set GOMEMLIMIT from the cgroup's memory limit, when running under
	// one, so the stopper's freeFraction sampling reflects the container's
	// actual budget rather than the host's total RAM.
	if _, err := memlimit.SetGoMemLimitWithOpts(); err != nil {
		fmt.Fprintln(os.Stderr, "automemlimit:", err)
	}

	cfg := config.Default()
	if _, err := os.Stat(*configFile); err == nil {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := theaterlog.New(cfg.Log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	registry := actor.NewRegistry()
	// Applications register their Behaviors here before calling Run; a
	// bare theaterd binary hosts no actor types of its own.

	// A client_only node routes sends but never hosts actors: it starts no
	// launcher, stopper, or persister at all.
	var lch *launcher.Launcher
	var st *stopper.Stopper
	if !cfg.Cluster.ClientOnly {
		persister, err := openPersister(cfg.Persister)
		if err != nil {
			logger.Error("failed to open persister", "error", err)
			os.Exit(1)
		}

		st = stopper.New(stopper.Options{
			PollInterval:          cfg.Stopper.PollInterval,
			FreeFractionThreshold: cfg.Stopper.FreeFractionThreshold,
		}, func(addr actor.Address) { lch.Evict(addr) }, nil, logger)

		lch = launcher.New(registry, persister, nil, cfg.DefaultTimeToLive, logger, st.Touch, st.MarkDone)
	}

	rtr, err := router.Join(router.Config{
		BindAddr:      cfg.Cluster.BindAddr,
		AdvertiseAddr: cfg.Cluster.AdvertiseAddr,
		KnownPeers:    cfg.Cluster.KnownPeers,
		ClientOnly:    cfg.Cluster.ClientOnly,
	}, lch, reg, logger)
	if err != nil {
		logger.Error("failed to join cluster", "error", err)
		os.Exit(1)
	}

	var g run.Group

	if st != nil {
		g.Add(func() error {
			st.Run()
			return nil
		}, func(error) {
			st.Stop()
		})
	}

	{
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/debug/registry", debugRegistryHandler(lch, rtr))
		srv := &http.Server{Addr: *debugAddr, Handler: mux}

		g.Add(func() error {
			logger.Info("serving debug endpoints", "addr", *debugAddr)
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		})
	}

	{
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		cancelC := make(chan struct{})
		g.Add(func() error {
			select {
			case s := <-sig:
				logger.Info("received signal, shutting down", "signal", s)
				return nil
			case <-cancelC:
				return nil
			}
		}, func(error) {
			close(cancelC)
		})
	}

	if err := g.Run(); err != nil {
		logger.Warn("exited", "error", err)
	}

	if lch != nil {
		logger.Info("stopping resident instances")
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		lch.StopAll(stopCtx)
		cancel()
	}

	if err := rtr.Leave(10 * time.Second); err != nil {
		logger.Warn("error leaving cluster", "error", err)
	}
}

func openPersister(cfg config.PersisterConfig) (persist.Persister, error) {
	switch cfg.Kind {
	case "memory":
		return memstore.New(), nil
	default:
		return badgerstore.Open(cfg.Dir, nil)
	}
}

func debugRegistryHandler(lch *launcher.Launcher, rtr *router.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var addrs []actor.Address
		if lch != nil {
			addrs = lch.Addresses()
		}
		out := struct {
			Self      string   `json:"self"`
			View      []string `json:"view"`
			LiveCount int      `json:"live_count"`
			LiveAddrs []string `json:"live_addrs"`
		}{
			Self:      string(rtr.Self()),
			LiveCount: len(addrs),
		}
		for _, n := range rtr.View() {
			out.View = append(out.View, string(n))
		}
		for _, a := range addrs {
			out.LiveAddrs = append(out.LiveAddrs, a.String())
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func version() string {
	return "theaterd (development build)"
}
