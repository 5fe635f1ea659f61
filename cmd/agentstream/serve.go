package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/hupe1980/agentstream"
	"github.com/hupe1980/agentstream/config"
	"github.com/hupe1980/agentstream/engine"
	"github.com/hupe1980/agentstream/logging"
	"github.com/hupe1980/agentstream/model"
	anthropicmodel "github.com/hupe1980/agentstream/model/anthropic"
	openaimodel "github.com/hupe1980/agentstream/model/openai"
	"github.com/hupe1980/agentstream/observability"
	"github.com/hupe1980/agentstream/server"
	"github.com/hupe1980/agentstream/tool"
	"github.com/hupe1980/agentstream/tool/tavily"
)

const serviceName = "agentstream"

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat stream HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(logging.Config{
		Backend: cfg.Logging.Backend,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	if zl, ok := logger.(*logging.ZapAdapter); ok {
		defer func() { _ = zl.Sync() }()
	}

	shutdownTracer, err := observability.InitTracer(observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		ServiceName: serviceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("serve.tracer.shutdown_failed", "error", err.Error())
		}
	}()

	m, err := buildModel(cfg.Model)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	as, err := agentstream.New(m, func(o *agentstream.Options) {
		o.Tools = buildTools(cfg.Search)
		o.Instructions = cfg.Model.Instructions
		o.MaxSteps = cfg.Engine.MaxSteps
		o.MaxParallelTools = cfg.Engine.MaxParallelTools
		o.EventBufferSize = cfg.Server.EventBufferSize
		o.EmitTerminalRecords = cfg.Server.EmitTerminalRecords
		o.Observers = []engine.Observer{metrics}
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	srv := server.New(as.Runner(), func(o *server.Options) {
		o.ServiceName = serviceName
		o.Metrics = metrics
		o.Gatherer = reg
		o.ShutdownTimeout = cfg.Server.ShutdownTimeout
		o.Logger = logger
	})

	logger.Info("serve.start",
		"addr", cfg.Server.Addr,
		"provider", m.Info().Provider,
		"model", m.Info().Name,
		"search", cfg.Search.Enabled,
	)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = cfg.Name
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.OpenAIAPIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(cfg.Name)
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.AnthropicAPIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "mock":
		return model.NewMockModel(cfg.Name, "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func buildTools(cfg config.SearchConfig) []tool.Tool {
	if !cfg.Enabled {
		return nil
	}
	return []tool.Tool{tavily.New(func(o *tavily.Options) {
		o.APIKey = cfg.APIKey
		o.MaxResults = cfg.MaxResults
		o.SearchDepth = cfg.Depth
		o.RateLimit = rate.Limit(cfg.RateLimit)
	})}
}
