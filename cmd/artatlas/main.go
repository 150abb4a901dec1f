// Command artatlas resolves, validates and archives ArtAtlas search
// backend responses from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/engine/graph"
	"github.com/manas-droid/ArtAtlas/engine/search"
	"github.com/manas-droid/ArtAtlas/pkg/config"
	"github.com/manas-droid/ArtAtlas/pkg/resilience"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(newApp(os.Stdin, os.Stdout, os.Stderr)).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// Searcher fetches a raw backend response.
type Searcher interface {
	Search(ctx context.Context, query string) (domain.Response, error)
}

// SnapshotStore persists responses for later inspection.
type SnapshotStore interface {
	Save(ctx context.Context, id string, resp domain.Response) error
	Load(ctx context.Context, id string) (domain.Response, error)
	List(ctx context.Context) ([]graph.SnapshotInfo, error)
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	newSearcher func(*config.Config, *slog.Logger) (Searcher, error)
	openStore   func(context.Context, *config.Config) (SnapshotStore, error)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:          in,
		out:         out,
		errOut:      errOut,
		newSearcher: defaultSearcher,
		openStore:   defaultStore,
	}
}

func defaultSearcher(cfg *config.Config, logger *slog.Logger) (Searcher, error) {
	return search.NewClient(search.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Breaker: resilience.BreakerOpts{
			FailThreshold: cfg.Backend.BreakerThreshold,
			Cooldown:      cfg.Backend.BreakerCooldown,
		},
		Logger: logger,
	})
}

func defaultStore(ctx context.Context, cfg *config.Config) (SnapshotStore, error) {
	return graph.Open(ctx, cfg.Neo4j.URL, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "artatlas",
		Short:        "Resolve and inspect ArtAtlas explanation graphs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			cfg, err := config.Load(a.cfgFile,
				config.Bind{Key: "log.level", Flag: flags.Lookup("log-level")},
				config.Bind{Key: "backend.base_url", Flag: flags.Lookup("backend-url")},
				config.Bind{Key: "nats.url", Flag: flags.Lookup("nats-url")},
			)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = config.NewLogger(config.LogConfig{Level: cfg.Log.Level, Format: "text"}, a.errOut)
			return nil
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", os.Getenv("ARTATLAS_CONFIG"), "path to a YAML config file")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("backend-url", "", "search backend base URL")
	pf.String("nats-url", "", "NATS server URL")

	root.AddCommand(
		a.resolveCmd(),
		a.searchCmd(),
		a.validateCmd(),
		a.snapshotCmd(),
		a.workerCmd(),
	)
	return root
}

// readInput reads the file named by args[0], or stdin when args is empty
// or "-".
func (a *app) readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(a.in)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
