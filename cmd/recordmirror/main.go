package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentworkforce/recordmirror/internal/config"
	"github.com/agentworkforce/recordmirror/internal/gateway"
	"github.com/agentworkforce/recordmirror/internal/mirror"
	"github.com/agentworkforce/recordmirror/internal/snapshot"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile   string
	envFile      string
	baseURL      string
	snapshotDSN  string
	snapshotName string
	seedBoundary int
	pageSize     int
	timeout      time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "recordmirror",
		Short:         "Browse and edit a local mirror of a remote record collection",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	flags.StringVar(&opts.baseURL, "base-url", "", "remote collection URL (RECORDMIRROR_BASE_URL)")
	flags.StringVar(&opts.snapshotDSN, "snapshot", "", "snapshot backend DSN (RECORDMIRROR_SNAPSHOT_DSN)")
	flags.StringVar(&opts.snapshotName, "snapshot-name", "", "snapshot slot name (RECORDMIRROR_SNAPSHOT_NAME)")
	flags.IntVar(&opts.seedBoundary, "seed-boundary", 0, "highest id known to the remote (RECORDMIRROR_SEED_BOUNDARY)")
	flags.IntVar(&opts.pageSize, "page-size", 0, "rows per page (RECORDMIRROR_PAGE_SIZE)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-operation timeout (RECORDMIRROR_TIMEOUT)")

	root.AddCommand(
		newListCmd(opts),
		newShowCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newResetCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// resolve loads the config and applies any flag the user set explicitly.
func (o *rootOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configFile, o.envFile)
	if err != nil {
		return config.Config{}, err
	}
	if changed(cmd, "base-url") {
		cfg.BaseURL = o.baseURL
	}
	if changed(cmd, "snapshot") {
		cfg.SnapshotDSN = o.snapshotDSN
	}
	if changed(cmd, "snapshot-name") {
		cfg.SnapshotName = o.snapshotName
	}
	if changed(cmd, "seed-boundary") {
		cfg.SeedBoundary = o.seedBoundary
	}
	if changed(cmd, "page-size") {
		cfg.PageSize = o.pageSize
	}
	if changed(cmd, "timeout") {
		cfg.Timeout = o.timeout
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

// app is everything one command invocation needs.
type app struct {
	cfg     config.Config
	backend snapshot.Backend
	client  *gateway.HTTPClient
	store   *mirror.Store
	session *mirror.Session
}

func openApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := opts.resolve(cmd)
	if err != nil {
		return nil, err
	}
	backend, err := snapshot.BuildBackendFromDSN(cfg.SnapshotDSN, cfg.SnapshotName)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", cfg.SnapshotDSN, err)
	}
	client := gateway.NewHTTPClient(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
	store, err := mirror.NewStore(client, backend, mirror.StoreOptions{
		Classifier: mirror.NewOriginClassifier(cfg.SeedBoundary),
		Logger:     log.Default(),
	})
	if err != nil {
		_ = snapshot.Close(backend)
		return nil, err
	}
	return &app{
		cfg:     cfg,
		backend: backend,
		client:  client,
		store:   store,
		session: mirror.NewSession(store, cfg.PageSize),
	}, nil
}

func (a *app) Close() {
	if err := snapshot.Close(a.backend); err != nil {
		log.Printf("close snapshot: %v", err)
	}
}

func (a *app) context(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, a.cfg.Timeout)
}

// load populates the session; every command except serve treats a failed
// load as fatal.
func (a *app) load(cmd *cobra.Command) error {
	ctx, cancel := a.context(cmd.Context())
	defer cancel()
	_, err := a.session.Load(ctx)
	return err
}
