// =============================================================================
// FlowForge 主入口
// =============================================================================
// 工作流编排 CLI：模板列表、从模板创建工作流、运行工作流
//
// 使用方法:
//
//	flowforge list                                  # 列出可用模板
//	flowforge create --template react --name demo   # 从模板创建并导出工作流
//	flowforge run --file workflow.yaml              # 运行工作流定义
//	flowforge version                               # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flowforge/flowforge/config"
	"github.com/flowforge/flowforge/internal/metrics"
	"github.com/flowforge/flowforge/internal/telemetry"
	"github.com/flowforge/flowforge/persistence"
	"github.com/flowforge/flowforge/workflow"
	"github.com/flowforge/flowforge/workflow/template"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList(os.Args[2:])
	case "create":
		runCreate(os.Args[2:])
	case "run":
		runRun(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 📋 list 命令
// =============================================================================

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	search := fs.String("search", "", "Filter templates by keyword")
	fs.Parse(args)

	registry := template.NewRegistry(zap.NewNop())
	registry.RegisterBuiltins()

	if *search != "" {
		for _, t := range registry.Search(*search) {
			fmt.Printf("%-28s %-8s %s\n", t.Name(), t.Category(), t.Description())
		}
		return
	}
	for _, name := range registry.List() {
		t, _ := registry.Get(name)
		fmt.Printf("%-28s %-8s %s\n", t.Name(), t.Category(), t.Description())
	}
}

// =============================================================================
// 🛠️ create 命令
// =============================================================================

func runCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	templateName := fs.String("template", "", "Template name (required)")
	workflowName := fs.String("name", "", "Workflow name (required)")
	paramsJSON := fs.String("params", "{}", "Template parameters as JSON")
	format := fs.String("format", "yaml", "Output format: yaml or json")
	output := fs.String("output", "", "Output file (default stdout)")
	fs.Parse(args)

	if *templateName == "" || *workflowName == "" {
		fmt.Fprintln(os.Stderr, "create requires --template and --name")
		os.Exit(1)
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --params JSON: %v\n", err)
		os.Exit(1)
	}

	registry := template.NewRegistry(zap.NewNop())
	registry.RegisterBuiltins()

	wf, err := registry.CreateWorkflow(*templateName, *workflowName, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create workflow: %v\n", err)
		os.Exit(1)
	}

	var data []byte
	switch *format {
	case "yaml":
		data, err = workflow.MarshalYAML(wf)
	case "json":
		data, err = workflow.MarshalJSON(wf)
	default:
		fmt.Fprintf(os.Stderr, "Unknown format: %s\n", *format)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to serialize workflow: %v\n", err)
		os.Exit(1)
	}

	if *output == "" {
		fmt.Print(string(data))
		return
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("Workflow %s written to %s\n", wf.ID, *output)
}

// =============================================================================
// 🚀 run 命令
// =============================================================================

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	file := fs.String("file", "", "Workflow definition file (YAML or JSON, required)")
	configPath := fs.String("config", "", "Path to config file")
	ctxJSON := fs.String("context", "{}", "Execution context as JSON")
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "run requires --file")
		os.Exit(1)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.Build()
	defer logger.Sync()

	logger.Info("Starting FlowForge",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// Initialize OpenTelemetry
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if otelProviders != nil {
			otelProviders.Shutdown(context.Background())
		}
	}()

	var execCtx map[string]any
	if err := json.Unmarshal([]byte(*ctxJSON), &execCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --context JSON: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *file, err)
		os.Exit(1)
	}

	mgr, cleanup := buildManager(cfg, logger, otelProviders)
	defer cleanup()

	wf, err := deploy(mgr, *file, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to deploy workflow: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := mgr.Run(ctx, wf.ID, execCtx)
	if err != nil {
		logger.Error("workflow run failed", zap.String("workflow_id", wf.ID), zap.Error(err))
		os.Exit(1)
	}

	result, _ := json.MarshalIndent(state.ToMap(), "", "  ")
	fmt.Println(string(result))
}

// buildManager wires the orchestrator stack from config.
func buildManager(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) (*workflow.Manager, func()) {
	var cleanups []func()

	var store persistence.HistoryStore = persistence.NewMemoryHistoryStore()
	if cfg.Redis.Enabled {
		redisStore, err := persistence.NewRedisHistoryStore(persistence.RedisConfig{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			logger.Warn("Redis not available, falling back to memory history store", zap.Error(err))
		} else {
			store = redisStore
		}
	}
	cleanups = append(cleanups, func() { store.Close() })

	execOpts := []workflow.GraphExecutorOption{
		workflow.WithMaxSteps(cfg.Executor.MaxSteps),
		workflow.WithHistorySink(store),
	}
	orchOpts := []workflow.OrchestratorOption{
		workflow.WithExecutionTTL(cfg.Orchestrator.ExecutionTTL),
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer, logger)
		execOpts = append(execOpts, workflow.WithStepObserver(collector.StepObserver()))
		orchOpts = append(orchOpts, workflow.WithExecutionObserver(collector))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		cleanups = append(cleanups, func() { srv.Close() })
	}

	if cfg.Orchestrator.ExecutionsPerSecond > 0 {
		orchOpts = append(orchOpts, workflow.WithRateLimit(
			cfg.Orchestrator.ExecutionsPerSecond, cfg.Orchestrator.ExecutionsBurst))
	}
	if otel != nil {
		orchOpts = append(orchOpts, workflow.WithTracer(otel.Tracer("flowforge/workflow")))
	}

	executor := workflow.NewGraphExecutor(logger, execOpts...)
	orchOpts = append(orchOpts, workflow.WithExecutor(executor))
	orch := workflow.NewOrchestrator(logger, orchOpts...)

	registry := template.NewRegistry(logger)
	registry.RegisterBuiltins()

	mgr := workflow.NewManager(logger, orch,
		workflow.WithWorkflowFactory(registry),
		workflow.WithPruneInterval(cfg.Orchestrator.PruneInterval),
	)
	mgr.Start()
	cleanups = append(cleanups, mgr.Stop)

	return mgr, func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

// deploy picks the codec from the file extension.
func deploy(mgr *workflow.Manager, path string, data []byte) (*workflow.Workflow, error) {
	if len(path) > 5 && path[len(path)-5:] == ".json" {
		return mgr.DeployJSON(data)
	}
	return mgr.DeployYAML(data)
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

func printVersion() {
	fmt.Printf("FlowForge %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`FlowForge - workflow orchestration for LLM agents

Usage:
  flowforge list [--search keyword]
  flowforge create --template NAME --name NAME [--params JSON] [--format yaml|json] [--output FILE]
  flowforge run --file FILE [--config FILE] [--context JSON]
  flowforge version`)
}
