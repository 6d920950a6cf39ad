package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"menucrawler/crawler/internal/config"
	"menucrawler/crawler/internal/container"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand
type app struct {
	configPath string
	verbose    bool
	sessionID  string

	cfg       *config.Config
	container *container.Container
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, &app{}, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// execute runs one command line and always releases the container,
// including when the command fails.
func execute(ctx context.Context, a *app, args []string) error {
	defer a.close()

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menucrawler",
		Short: "Crawl restaurant menu pages into structured item lists",
		Long: `menucrawler discovers the categories of an online restaurant menu, crawls
every category page with a set of CSS selectors and exports the items.

Crawled items accumulate in a session until it is exported or reset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default ./config.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVarP(&a.sessionID, "session", "s", "", "Session that accumulates crawled items (default from config)")

	cmd.AddCommand(
		newDiscoverCmd(a),
		newCrawlCmd(a),
		newCrawlSingleCmd(a),
		newTestSelectorsCmd(a),
		newExportCmd(a),
		newResetCmd(a),
		newRetryCmd(a),
		newCategoryImagesCmd(a),
		newPresetsCmd(a),
	)

	return cmd
}

// setup loads configuration and configures logging
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	if a.sessionID == "" {
		a.sessionID = cfg.Session.DefaultID
	}

	configureLogging(cfg.Log, a.verbose)
	log.Debug("Configuration loaded successfully")
	return nil
}

// services builds the container on first use
func (a *app) services(ctx context.Context) (*container.Container, error) {
	if a.container != nil {
		return a.container, nil
	}

	c, err := container.New(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	a.container = c
	return c, nil
}

func (a *app) close() {
	if a.container == nil {
		return
	}
	a.container.Close()
	a.container = nil
}

func configureLogging(cfg config.LogConfig, verbose bool) {
	log.SetOutput(os.Stderr)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("⚠️ Unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
