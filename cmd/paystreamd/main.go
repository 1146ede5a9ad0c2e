package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paystream/config"
	"paystream/core"
	"paystream/core/state"
	"paystream/observability/logging"
	"paystream/storage"
	"paystream/storage/trie"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("paystreamd", "").Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("paystreamd", cfg.Environment)

	journal, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "journal"))
	if err != nil {
		logger.Error("failed to open receipt journal", "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	stateTrie, err := trie.NewMemoryTrie()
	if err != nil {
		logger.Error("failed to initialize state trie", "error", err)
		os.Exit(1)
	}
	manager, err := state.NewManager(stateTrie)
	if err != nil {
		logger.Error("failed to initialize state manager", "error", err)
		os.Exit(1)
	}
	node, err := core.NewNode(manager, journal, logger)
	if err != nil {
		logger.Error("failed to initialize node", "error", err)
		os.Exit(1)
	}
	err = node.Bootstrap(func(m *state.Manager) error {
		for _, token := range cfg.Tokens {
			if err := m.RegisterToken(token.Symbol, token.Name, token.Decimals); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to bootstrap token registry", "error", err)
		os.Exit(1)
	}

	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics listener started", "address", cfg.MetricsAddress)
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	logger.Info("node started", "network", cfg.NetworkName, "dataDir", cfg.DataDir, "tokens", len(cfg.Tokens))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
}
