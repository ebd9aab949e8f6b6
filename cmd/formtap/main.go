package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/catalog"
	"github.com/ajitpratap0/formtap/pkg/client"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/emitter"
	"github.com/ajitpratap0/formtap/pkg/jsonutil"
	"github.com/ajitpratap0/formtap/pkg/logger"
	"github.com/ajitpratap0/formtap/pkg/state"
	"github.com/ajitpratap0/formtap/pkg/streams"
	"github.com/ajitpratap0/formtap/pkg/tapsync"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "formtap",
		Short: "formtap - forms API extraction connector",
		Long: `formtap extracts forms, submissions and answers from a forms/survey API
and emits them as a self-describing record stream with incremental bookmarks.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("formtap v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Print the stream catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := jsonutil.MarshalIndent(catalog.Discover(streams.NewRegistry()), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	})

	var (
		configPath  string
		catalogPath string
		statePath   string
		devMode     bool
		logLevel    string
	)
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run an extraction against the forms API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "json"}); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runSync(cmd.Context(), configPath, catalogPath, statePath, devMode)
		},
	}
	syncCmd.Flags().StringVar(&configPath, "config", "", "Path to the JSON config file (required)")
	syncCmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to the catalog file (required)")
	syncCmd.Flags().StringVar(&statePath, "state", "", "Path to the previous run's state file")
	syncCmd.Flags().BoolVar(&devMode, "dev", false, "Skip the OAuth refresh exchange")
	syncCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	_ = syncCmd.MarkFlagRequired("config")
	_ = syncCmd.MarkFlagRequired("catalog")
	root.AddCommand(syncCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSync(ctx context.Context, configPath, catalogPath, statePath string, devMode bool) error {
	store, err := config.NewStore(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := store.Config()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	catalogData, err := os.ReadFile(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	cat, err := catalog.Parse(catalogData)
	if err != nil {
		return fmt.Errorf("failed to parse catalog: %w", err)
	}

	st := state.New()
	if statePath != "" {
		data, err := os.ReadFile(statePath)
		switch {
		case os.IsNotExist(err):
			logger.Info("no previous state, starting fresh", zap.String("path", statePath))
		case err != nil:
			return fmt.Errorf("failed to read state: %w", err)
		default:
			if err := jsonutil.Unmarshal(data, st); err != nil {
				return fmt.Errorf("failed to parse state: %w", err)
			}
		}
	}

	c, err := client.New(ctx, cfg, store, devMode)
	if err != nil {
		return err
	}

	engine := tapsync.New(c, streams.NewRegistry(), cat, st,
		emitter.NewJSONLEmitter(os.Stdout), cfg)
	return engine.Sync(ctx, cfg.FormIDs())
}
