package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
	brun "sparqlbench/internal/bench/runner"
	"sparqlbench/internal/ops"
	"sparqlbench/internal/report"
	"sparqlbench/pkg/metricsutil"
)

func addTargetFlags(flags *pflag.FlagSet) {
	flags.String("endpoint", "", "SPARQL query endpoint")
	flags.String("update-endpoint", "", "SPARQL update endpoint (defaults to the query endpoint)")
	flags.String("username", "", "Username for basic or token authentication")
	flags.String("password", "", "Password for basic or token authentication")
	flags.String("token-url", "", "URL to fetch bearer tokens from")
}

func addRunFlags(flags *pflag.FlagSet) {
	addTargetFlags(flags)
	flags.StringSlice("query", nil, "Query file to add to the mix (repeatable)")
	flags.Int("runs", 0, "Number of mix runs")
	flags.Int("warmups", 0, "Number of warmup mix runs")
	flags.Int("outliers", 0, "Number of best and worst runs to discard")
	flags.Int("parallel", 0, "Number of concurrent clients")
	flags.Duration("timeout", 0, "Operation timeout, 0 disables it")
	flags.Duration("max-runtime", 0, "Runtime limit for soak and stress tests")
	flags.Duration("max-delay", 0, "Maximum random delay between operations")
	flags.Int("max-threads", 0, "Maximum number of clients in stress tests")
	flags.Int("ramp-up-factor", 0, "Client multiplier between stress test rounds")
	flags.Int("retries", 0, "Additional attempts for failed operations")
	flags.Int("sanity-check-level", 0, "0: none, 1: operation checks, 2: probe endpoints")
	flags.String("order", "", "Operation order: default, in_order or sampling")
	flags.Bool("report-order", false, "Report the operation order of every mix run")
	flags.Bool("adaptive", false, "Exclude failing operations and tune the timeout after the warmups")
	flags.Duration("progress-interval", 0, "Interval between progress summaries")
}

// applyOverrides copies flag and environment values onto cfg. Only values
// set explicitly replace the configuration file.
func applyOverrides(cfg *benchapi.RunConfig) {
	setString := func(key string, dst *string) {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	setInt := func(key string, dst **int) {
		if viper.IsSet(key) {
			v := viper.GetInt(key)
			*dst = &v
		}
	}
	setDuration := func(key string, dst **benchapi.Duration) {
		if viper.IsSet(key) {
			*dst = benchapi.NewDuration(viper.GetDuration(key))
		}
	}

	setString("endpoint", &cfg.Target.QueryEndpoint)
	setString("update-endpoint", &cfg.Target.UpdateEndpoint)
	setString("username", &cfg.Target.Username)
	setString("password", &cfg.Target.Password)
	setString("token-url", &cfg.Target.TokenURL)

	for _, file := range viper.GetStringSlice("query") {
		cfg.Mix.Operations = append(cfg.Mix.Operations, benchapi.OperationConfig{
			Type:      ops.TypeQuery,
			QueryFile: file,
		})
	}

	setInt("runs", &cfg.Runs)
	setInt("warmups", &cfg.Warmups)
	setInt("outliers", &cfg.Outliers)
	setInt("parallel", &cfg.Parallel)
	setInt("max-threads", &cfg.MaxThreads)
	setInt("ramp-up-factor", &cfg.RampUpFactor)
	setInt("retries", &cfg.Retries)
	setInt("sanity-check-level", &cfg.SanityCheckLevel)
	setDuration("timeout", &cfg.Timeout)
	setDuration("max-runtime", &cfg.MaxRuntime)
	setDuration("max-delay", &cfg.MaxDelay)
	setDuration("progress-interval", &cfg.ProgressInterval)

	if viper.IsSet("order") {
		cfg.Order.Kind = benchapi.OrderKind(viper.GetString("order"))
	}
	if viper.IsSet("report-order") {
		cfg.Order.Report = viper.GetBool("report-order")
	}
	if viper.IsSet("adaptive") {
		cfg.Adaptive.Enabled = viper.GetBool("adaptive")
	}
}

func readRunConfig(cmd *cobra.Command, mode benchapi.Mode) (cfg benchapi.RunConfig, err error) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return cfg, err
	}

	cfg, err = readConfigFile[benchapi.RunConfig]("")
	if err != nil {
		return cfg, fmt.Errorf("read run config: %w", err)
	}
	if mode != "" {
		cfg.Mode = mode
	}
	applyOverrides(&cfg)
	return cfg, nil
}

// runSetup is everything needed to execute a run configuration locally.
type runSetup struct {
	cfg    benchapi.RunConfig
	opts   *bench.Options
	mix    *bench.OperationMix
	runner *brun.Runner
}

func newRunSetup(cfg benchapi.RunConfig, log *zap.SugaredLogger) (*runSetup, error) {
	httpClient := &http.Client{}
	client := &ops.Client{
		HTTP: httpClient,
		Auth: ops.NewAuthenticator(cfg.Target, httpClient),
	}

	mix, err := ops.LoadMix(cfg.Mix, cfg.Target, configDir(), client)
	if err != nil {
		return nil, fmt.Errorf("load mix: %w", err)
	}

	mr, err := brun.MixRunnerFromAPI(&cfg, log)
	if err != nil {
		return nil, err
	}

	opts := brun.OptionsFromAPI(&cfg)
	opts.Authenticator = client.Auth

	return &runSetup{
		cfg:    cfg,
		opts:   opts,
		mix:    mix,
		runner: brun.New(mr, log),
	}, nil
}

type outputFlags struct {
	out          string
	metricsOut   string
	printMetrics bool
	progress     bool
	verbose      bool
}

func (o *outputFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&o.out, "out", "o", "", "Write the run summary as JSON to this file")
	flags.StringVar(&o.metricsOut, "metrics-out", "", "Write the final metrics in the Prometheus text format to this file")
	flags.BoolVar(&o.printMetrics, "print-metrics", false, "Print the final metrics")
	flags.BoolVar(&o.progress, "progress", false, "Show a progress bar")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Log every operation")
}

func runCmd(mode benchapi.Mode, short string) *cobra.Command {
	var output outputFlags

	cmd := &cobra.Command{
		Use:   string(mode),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := readRunConfig(cmd, mode)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return executeRun(ctx, log, cfg, output)
		},
	}

	addRunFlags(cmd.Flags())
	output.register(cmd.Flags())
	return cmd
}

func executeRun(ctx context.Context, log *zap.SugaredLogger, cfg benchapi.RunConfig, output outputFlags) error {
	s, err := newRunSetup(cfg, log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := metricsutil.NewLazyMetrics(report.NewRunMetrics(), registry)

	s.runner.Listeners = []bench.ProgressListener{
		report.NewConsole(log, output.verbose),
		report.NewMetrics(metrics.Register(), s.opts),
	}
	if output.progress {
		total := 0
		if cfg.Mode == benchapi.ModeBenchmark || cfg.Mode == "" {
			total = s.opts.Runs + s.opts.WarmupRuns
		}
		s.runner.Listeners = append(s.runner.Listeners, report.NewProgressBar(os.Stderr, total, s.mix.Name()))
	}

	res, runErr := s.runner.Run(ctx, cfg.Mode, s.opts, s.mix)
	if res == nil {
		return runErr
	}

	summary := brun.Summarize(res)
	if err := report.RenderSummary(os.Stdout, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if err := writeOutputs(registry, summary, output); err != nil {
		return err
	}
	return runErr
}

// inlineQueryFiles replaces query file references with their contents so
// remote workers do not need access to the files.
func inlineQueryFiles(cfg *benchapi.RunConfig) error {
	for i := range cfg.Mix.Operations {
		op := &cfg.Mix.Operations[i]
		if op.QueryFile == "" {
			continue
		}

		path := op.QueryFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir(), path)
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read query file: %w", err)
		}
		if op.Name == "" {
			op.Name = strings.TrimSuffix(filepath.Base(op.QueryFile), filepath.Ext(op.QueryFile))
		}
		op.Query = string(contents)
		op.QueryFile = ""
	}
	return nil
}
