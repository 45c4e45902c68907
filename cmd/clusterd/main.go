// Command clusterd is the single-binary CLI and embedded-engine daemon for
// the cluster lifecycle orchestrator. It mirrors warren's cobra-rooted
// cmd/warren: a root command with persistent logging flags, one
// subcommand tree per resource group, and a `serve` command that keeps
// the dispatcher, event broker, and metrics/health HTTP endpoints running.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/clusterd/pkg/config"
	"github.com/cuemby/clusterd/pkg/engine"
	"github.com/cuemby/clusterd/pkg/log"
	"github.com/cuemby/clusterd/pkg/storage"
	"github.com/cuemby/clusterd/pkg/types"
)

var (
	// Version information (set via ldflags during build).
	Version = "dev"
	Commit  = "unknown"
)

var cfgPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "clusterd",
	Short:   "clusterd - declarative cluster lifecycle orchestrator",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("clusterd version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to clusterd.yaml (defaults are used when omitted)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the config file's log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "", "Override the config file's data directory")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(applyCmd)
}

func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		cfg = config.Default()
	}
	level := cfg.LogLevel()
	if lvl, _ := rootCmd.PersistentFlags().GetString("log-level"); lvl != "" {
		level = log.Level(lvl)
	}
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: level, JSONOutput: jsonOut || cfg.Log.JSON})
}

// loadConfig reads the --config file, applying --data-dir if given.
func loadConfig() (*config.EngineConfig, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dd, _ := rootCmd.PersistentFlags().GetString("data-dir"); dd != "" {
		cfg.DataDir = dd
	}
	return cfg, nil
}

// openEngine opens the BoltDB store under the resolved config's data dir
// and wires it into a fresh Engine, starting its dispatcher and broker.
// Callers defer closeEngine(eng, store).
func openEngine() (*engine.Engine, storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	eng := engine.New(store, cfg.Workers)
	eng.Start()
	return eng, store, nil
}

func closeEngine(eng *engine.Engine, store storage.Store) {
	eng.Stop()
	_ = store.Close()
}

// waitAction polls store for actionID to reach a terminal status, printing
// nothing itself — callers report the final action. A CLI invocation is a
// single short-lived process, so blocking here (unlike inside a dispatcher
// worker, which must never block on a wait) is the right tradeoff.
func waitAction(store storage.Store, actionID string, timeout time.Duration) (*types.Action, error) {
	deadline := time.Now().Add(timeout)
	for {
		a, err := store.GetAction(actionID)
		if err != nil {
			return nil, err
		}
		if a.Status.Terminal() {
			return a, nil
		}
		if time.Now().After(deadline) {
			return a, fmt.Errorf("timed out waiting for action %s to finish (last status %s)", actionID, a.Status)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
