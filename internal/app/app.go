// Package app wires the adapters into the runtime manager and exposes
// the CLI commands on top of it.
package app

import (
	"context"
	"encoding/json"
	"os"

	"github.com/colabtools/colabctl/internal/adapter/auth"
	"github.com/colabtools/colabctl/internal/adapter/colab"
	"github.com/colabtools/colabctl/internal/adapter/history"
	"github.com/colabtools/colabctl/internal/adapter/jupyter"
	"github.com/colabtools/colabctl/internal/adapter/proxy"
	"github.com/colabtools/colabctl/internal/adapter/transport"
	"github.com/colabtools/colabctl/internal/config"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
	"github.com/colabtools/colabctl/internal/runtime"
)

// App owns the wired component graph and the cobra command tree.
// Wiring happens after flag parsing so --config is honoured.
type App struct {
	ctx    context.Context
	logger *logger.StyledLogger

	configFile string
	jsonOut    bool

	cfg     *config.Config
	tokens  *auth.FileTokenSource
	api     *colab.Client
	history ports.HistoryStore
	runtime *runtime.Manager
}

func New(ctx context.Context, log *logger.StyledLogger) *App {
	return &App{ctx: ctx, logger: log}
}

// Execute parses args, wires the application and runs the command
func (a *App) Execute(args []string) error {
	root := a.newRootCmd()
	root.SetArgs(args)
	defer a.shutdown()
	return root.ExecuteContext(a.ctx)
}

// initialise loads configuration and builds the component graph.
// Called from the root command once flags are parsed.
func (a *App) initialise() error {
	cfg, err := config.LoadFrom(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.tokens = auth.NewFileTokenSource(config.DefaultStateDir())
	coalescing := transport.NewCoalescingTokenSource(a.tokens)

	httpClient := transport.New(coalescing, cfg.HTTP.Timeout, a.logger)
	a.api = colab.NewClient(httpClient, coalescing, cfg.Colab.APIDomain, cfg.Colab.GapiDomain, colab.RetryPolicy{
		MaxAttempts: cfg.HTTP.MaxRetries,
		Base:        cfg.HTTP.RetryBase,
		Cap:         cfg.HTTP.RetryCap,
		Jitter:      cfg.HTTP.RetryJitter,
	}, a.logger)

	a.history = history.NewStore(cfg.History.Path, a.logger)

	proxies := proxy.NewTokenCache(a.api, a.logger)
	sessions := jupyter.NewManager(a.api, proxies, cfg.WebSocket, a.logger)
	dispatcher := jupyter.NewDispatcher(a.history, a.logger)
	negotiator := colab.NewNegotiator(a.api, a.logger)

	a.runtime = runtime.NewManager(a.api, negotiator, runtime.NewLiveConnector(sessions, dispatcher), a.history, "", a.logger)
	return nil
}

func (a *App) shutdown() {
	if a.runtime != nil {
		a.runtime.Close()
	}
}

// printJSON emits exactly one JSON document on stdout
func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
