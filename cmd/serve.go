package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgeline/forgeline/internal/agent"
	"github.com/forgeline/forgeline/internal/bus"
	"github.com/forgeline/forgeline/internal/config"
	"github.com/forgeline/forgeline/internal/job"
	"github.com/forgeline/forgeline/internal/llm"
	"github.com/forgeline/forgeline/internal/session"
	"github.com/forgeline/forgeline/internal/store/sqlite"
	"github.com/forgeline/forgeline/internal/subprocess"
	"github.com/forgeline/forgeline/internal/tool"
	"github.com/forgeline/forgeline/internal/transport/chatws"
	"github.com/forgeline/forgeline/internal/transport/mcpserver"
	"github.com/forgeline/forgeline/internal/transport/rest"
	"github.com/forgeline/forgeline/internal/workspace"
)

// serveCmd runs the gateway: chat-WS and REST on one shared *http.Server,
// plus MCP over stdio, SSE, and/or streamable HTTP when configured. Config
// load -> slog setup -> component wiring -> signal-driven graceful
// shutdown.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the forgeline gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	db, err := sqlite.Open(cfg.DataRoot)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer db.Close()
	sessionStore := sqlite.NewStore(db)

	// sessions is assigned after workspaces is constructed; onMutate's closure
	// captures the variable, not its (not-yet-set) value, so this is safe.
	var sessions *session.Manager
	workspaces := workspace.NewStore(cfg.DataRoot, 0, func(sessionID string) {
		if err := sessions.Touch(context.Background(), sessionID); err != nil {
			slog.Warn("workspace touch failed", "session", sessionID, "error", err)
		}
	})
	sessions = session.NewManager(sessionStore, workspaces)

	runner := subprocess.New()

	containerRunner := job.NewContainerRunner()
	jobs := job.NewSupervisor(containerRunner, job.Config{
		Image:          cfg.Synthesis.ContainerImage,
		HardTimeout:    cfg.Synthesis.HardTimeout,
		StuckThreshold: cfg.Synthesis.StuckThreshold,
	})

	registry := tool.NewRegistry(tool.AllDefinitions()...)
	filters := tool.NewFilterStore(tool.Filter{
		Mode:       tool.FilterMode(cfg.Tools.DefaultFilterMode),
		Categories: toCategories(cfg.Tools.DefaultCategories),
	})
	executor := tool.NewExecutor(registry, filters)

	toolCtxFactory := func(sessionID string) *tool.Context {
		return &tool.Context{
			SessionID: sessionID,
			Sessions:  sessions,
			Workspace: workspaces,
			Jobs:      jobs,
			Runner:    runner,
			Config: tool.ToolConfig{
				LinterPath:      cfg.Tools.LinterPath,
				LinterArgs:      []string(cfg.Tools.LinterArgs),
				SimulatorPath:   cfg.Tools.SimulatorPath,
				SimulatorArgs:   []string(cfg.Tools.SimulatorArgs),
				CocotbPath:      cfg.Tools.CocotbPath,
				FormalPath:      cfg.Tools.FormalPath,
				SchematicScript: cfg.Tools.SchematicScript,
				DefaultSoftTO:   cfg.Subprocess.DefaultSoftTimeout,
				DefaultHardTO:   cfg.Subprocess.DefaultHardTimeout,
				MaxOutputBytes:  cfg.Subprocess.MaxOutputBytes,
			},
			SetFilter: func(mode tool.FilterMode, categories []tool.Category) {
				filters.Set(sessionID, tool.Filter{Mode: mode, Categories: categories})
			},
			Registry: registry,
		}
	}

	provider := llm.NewAnthropicProvider(cfg.LLM.APIKey, llm.WithAnthropicModel(cfg.LLM.DefaultModel), llm.WithAnthropicBaseURL(cfg.LLM.Endpoint))
	eventBus := bus.New()

	loop := agent.New(agent.Config{
		Provider:       provider,
		Model:          cfg.LLM.DefaultModel,
		MaxIterations:  cfg.Agent.MaxIterations,
		TurnBudget:     cfg.Agent.TurnBudget,
		Sessions:       sessions,
		Registry:       registry,
		Filters:        filters,
		Executor:       executor,
		Bus:            eventBus,
		Tracer:         agent.NewTracer(),
		ToolCtxFactory: toolCtxFactory,
	})

	chatServer := chatws.New(cfg, loop, sessions, eventBus)
	restServer := rest.New(loop, sessions, workspaces, jobs)

	mux := http.NewServeMux()
	chatServer.RegisterRoutes(mux)
	restServer.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    cfg.Gateway.ListenAddr,
		Handler: mux,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "error", err)
		}
		cancel()
	}()

	if cfg.Gateway.MCPStdio {
		mcpSrv := mcpserver.New(registry, filters, executor, toolCtxFactory, agent.SystemPrompt)
		go func() {
			if err := mcpSrv.ServeStdio(); err != nil {
				slog.Warn("mcp stdio server stopped", "error", err)
			}
		}()
	}
	if cfg.Gateway.MCPSSEAddr != "" {
		mcpSrv := mcpserver.New(registry, filters, executor, toolCtxFactory, agent.SystemPrompt)
		go func() {
			if err := mcpSrv.ServeSSE(cfg.Gateway.MCPSSEAddr, "http://"+cfg.Gateway.MCPSSEAddr); err != nil {
				slog.Warn("mcp sse server stopped", "error", err)
			}
		}()
	}
	if cfg.Gateway.MCPHTTPAddr != "" {
		mcpSrv := mcpserver.New(registry, filters, executor, toolCtxFactory, agent.SystemPrompt)
		go func() {
			if err := mcpSrv.ServeStreamableHTTP(cfg.Gateway.MCPHTTPAddr); err != nil {
				slog.Warn("mcp http server stopped", "error", err)
			}
		}()
	}

	slog.Info("forgeline gateway starting", "addr", cfg.Gateway.ListenAddr, "version", Version)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	<-ctx.Done()
	return nil
}

func toCategories(names []string) []tool.Category {
	out := make([]tool.Category, 0, len(names))
	for _, n := range names {
		out = append(out, tool.Category(n))
	}
	return out
}
