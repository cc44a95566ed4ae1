package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ahrav/judgebench/infrastructure/llm"
	"github.com/ahrav/judgebench/infrastructure/metrics"
	"github.com/ahrav/judgebench/infrastructure/questions"
	"github.com/ahrav/judgebench/infrastructure/report"
	"github.com/ahrav/judgebench/internal/application"
	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

const (
	tracingServiceName = "judgebench"
	retryBaseDelay     = 500 * time.Millisecond
	retryMaxDelay      = 10 * time.Second
	breakerCooldown    = 30 * time.Second
)

// runOptions holds flags shared by run and validate. Non-empty flags
// override the configuration file.
type runOptions struct {
	configPath   string
	model        string
	judgeModel   string
	question     string
	questions    string
	maxTurns     int
	loadMessages string
	concurrency  int
	output       string
	format       string
	metricsAddr  string
}

func (o *runOptions) addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "Path to the YAML run configuration")
	f.StringVar(&o.model, "model", "", "Subject model, optionally prefixed with a provider (openai/gpt-4o)")
	f.StringVar(&o.judgeModel, "judge-model", "", "Judge model, optionally prefixed with a provider")
	f.StringVar(&o.question, "question", "", "Question id to drive")
	f.StringVar(&o.questions, "questions", "", "Path to a JSONL or YAML question bank")
	f.IntVar(&o.maxTurns, "max-turns", 0, "Maximum number of question turns to drive")
	f.StringVar(&o.loadMessages, "load-messages", "", "Judge recorded transcripts from this JSON file instead of driving the model")
	f.IntVar(&o.concurrency, "concurrency", 0, "Number of tasks evaluated in parallel")
}

// loadConfig reads the configuration file, if any, and applies flag
// overrides. The result is not validated.
func (o *runOptions) loadConfig(cmd *cobra.Command) (*application.Config, error) {
	cfg := application.DefaultConfig()
	if o.configPath != "" {
		loaded, err := application.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	changed := cmd.Flags().Changed
	if changed("model") {
		cfg.Model = o.model
	}
	if changed("judge-model") {
		cfg.JudgeModel = o.judgeModel
	}
	if changed("question") {
		cfg.Question = o.question
	}
	if changed("questions") {
		cfg.Questions = o.questions
	}
	if changed("max-turns") {
		cfg.MaxTurns = o.maxTurns
	}
	if changed("load-messages") {
		cfg.LoadMessages = o.loadMessages
	}
	if changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if changed("output") {
		cfg.Output = o.output
	}
	if changed("format") {
		cfg.OutputFormat = o.format
	}
	return &cfg, nil
}

func newRunCommand() *cobra.Command { return newRunCommandWith(&runOptions{}) }

func newRunCommandWith(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a judge benchmark",
		Long: `Run drives the configured question against the subject model, or loads
recorded transcripts with --load-messages, and rates every answer with the
judge model.

The exit status is 1 when any task failed and 2 on configuration errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd, opts)
		},
	}

	opts.addConfigFlags(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `Report destination, "-" for stdout`)
	cmd.Flags().StringVar(&opts.format, "format", "", "Report format (json or yaml)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	return cmd
}

func runBenchmark(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	log := clog.FromContext(ctx)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	env, err := application.LoadEnvironment(ctx)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewPrometheusMetrics(registry)
	if opts.metricsAddr != "" {
		stop, err := serveMetrics(ctx, opts.metricsAddr, registry)
		if err != nil {
			return err
		}
		defer stop()
	}

	tester, err := newTester(cfg, env, collector)
	if err != nil {
		return err
	}

	log.Infof("running %d task(s): %s judged by %s", len(tester.Tasks()), cfg.Model, cfg.JudgeModel)
	started := time.Now()
	outcomes := tester.RunAll(ctx)
	rep := report.New(runConfig(cfg), started, time.Now(), toReportOutcomes(outcomes))

	if err := report.WriteFile(cfg.Output, rep, cfg.OutputFormat); err != nil {
		return err
	}
	if err := report.WriteSummary(cmd.ErrOrStderr(), rep); err != nil {
		return err
	}

	if failed := application.Failed(outcomes); len(failed) > 0 {
		return &TaskFailureError{Failed: len(failed), Total: len(outcomes)}
	}
	return nil
}

// newTester wires the provider registry, the optional question bank and
// the metrics collector into a Tester.
func newTester(cfg *application.Config, env application.Environment, collector ports.MetricsCollector) (*application.Tester, error) {
	client, err := newRegistry(cfg.LLM, env, collector)
	if err != nil {
		return nil, err
	}

	var source ports.QuestionSource
	if cfg.Questions != "" && cfg.LoadMessages == "" {
		bank, err := questions.LoadFile(cfg.Questions)
		if err != nil {
			return nil, domain.NewConfigurationError("questions", err)
		}
		source = bank
	}

	return application.NewTester(cfg, client, source, application.WithMetrics(collector))
}

// newRegistry registers ollama unconditionally and each hosted provider
// whose credentials are present in the environment.
func newRegistry(cfg application.LLMConfig, env application.Environment, collector ports.MetricsCollector) (*llm.Registry, error) {
	providers := map[string]llm.ProviderConfig{
		"ollama": {BaseURL: ollamaBaseURL(env.OllamaHost)},
	}
	if env.OpenAIAPIKey != "" {
		providers["openai"] = llm.ProviderConfig{APIKey: env.OpenAIAPIKey, BaseURL: env.OpenAIBaseURL}
	}
	if env.AnthropicAPIKey != "" {
		providers["anthropic"] = llm.ProviderConfig{APIKey: env.AnthropicAPIKey}
	}
	if env.GoogleAPIKey != "" {
		providers["google"] = llm.ProviderConfig{APIKey: env.GoogleAPIKey}
	}

	if cfg.DefaultProvider != "" {
		if _, ok := providers[cfg.DefaultProvider]; !ok {
			return nil, domain.NewConfigurationError("llm.default_provider",
				fmt.Errorf("provider %q has no credentials in the environment", cfg.DefaultProvider))
		}
	}

	registry, err := llm.NewRegistry(llm.RegistryConfig{
		Providers:         providers,
		DefaultProvider:   cfg.DefaultProvider,
		DefaultTimeout:    cfg.Timeout,
		DefaultMiddleware: middlewareChain(cfg, collector),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider registry: %w", err)
	}
	return registry, nil
}

// middlewareChain returns the client middleware, outermost first. Tracing
// and metrics are always on; the rest are enabled by non-zero settings.
func middlewareChain(cfg application.LLMConfig, collector ports.MetricsCollector) []llm.Middleware {
	chain := []llm.Middleware{
		llm.TracingMiddleware(tracingServiceName),
		llm.MetricsMiddleware(collector),
	}
	if cfg.CircuitBreakerFailures > 0 {
		chain = append(chain, llm.CircuitBreakerMiddlewareWithMetrics(
			cfg.CircuitBreakerFailures, breakerCooldown, llm.CollectorBreakerMetrics(collector)))
	}
	if cfg.MaxRetries > 0 {
		chain = append(chain, llm.RetryMiddleware(cfg.MaxRetries, retryBaseDelay, retryMaxDelay))
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		chain = append(chain, llm.RateLimitMiddleware(rate.Limit(cfg.RateLimit), burst))
	}
	if cfg.Timeout > 0 {
		chain = append(chain, llm.TimeoutMiddleware(cfg.Timeout))
	}
	return chain
}

// ollamaBaseURL accepts OLLAMA_HOST in the forms the ollama CLI does:
// empty, host:port, or a full URL.
func ollamaBaseURL(host string) string {
	switch {
	case host == "":
		return ""
	case strings.Contains(host, "://"):
		return host
	default:
		return "http://" + host
	}
}

// serveMetrics starts a promhttp endpoint and returns a function that shuts
// it down.
func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics address: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			clog.FromContext(ctx).Errorf("metrics server failed: %v", err)
		}
	}()
	clog.FromContext(ctx).Infof("serving metrics on http://%s/metrics", ln.Addr())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}

func runConfig(cfg *application.Config) report.RunConfig {
	return report.RunConfig{
		Model:        cfg.Model,
		JudgeModel:   cfg.JudgeModel,
		Question:     cfg.Question,
		MaxTurns:     cfg.MaxTurns,
		LoadMessages: cfg.LoadMessages,
		Concurrency:  cfg.Concurrency,
	}
}

func toReportOutcomes(outcomes []application.Outcome) []report.Outcome {
	out := make([]report.Outcome, len(outcomes))
	for i, o := range outcomes {
		out[i] = report.Outcome{Task: o.Task, Result: o.Result, Err: o.Err}
	}
	return out
}
