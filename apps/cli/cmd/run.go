package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/suiterun/packages/core/config"
	"github.com/abdul-hamid-achik/suiterun/packages/core/env"
	"github.com/abdul-hamid-achik/suiterun/packages/core/resource"
	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
	"github.com/abdul-hamid-achik/suiterun/packages/core/tags"
	"github.com/abdul-hamid-achik/suiterun/packages/export/metrics"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
	"github.com/abdul-hamid-achik/suiterun/packages/history"
	"github.com/abdul-hamid-achik/suiterun/packages/http"
	"github.com/abdul-hamid-achik/suiterun/packages/notify"
	"github.com/abdul-hamid-achik/suiterun/packages/output"
	"github.com/abdul-hamid-achik/suiterun/packages/steps"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run feature files",
	Long: `Run the features defined in *.feature.yaml files on a bounded pool of workers.

Examples:
  suiterun run ./features
  suiterun run ./features --env qa --threads 4
  suiterun run ./features -t "@smoke and not @slow" -t "~@wip"
  suiterun run ./features -D baseUrl=http://localhost:8080 --env-file .env
  suiterun run ./features -o junit --output-file report.xml
  suiterun run ./features --notify slack --slack-webhook $SLACK_WEBHOOK --notify-on recovery
  suiterun run ./features --history-db .suiterun/history.db --metrics-port 9464
  suiterun run ./features --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag         string
	tagsFlag        []string
	threadsFlag     int
	configFlag      string
	configDirFlag   string
	classpathFlag   []string
	buildDirFlag    string
	reportDirFlag   string
	propertyFlags   []string
	envFileFlag     string
	timeoutFlag     string
	stepTimeoutFlag string
	proxyFlag       string
	insecureFlag    bool
	rateFlag        float64
	outputFlag      string
	outputFileFlag  string
	watchFlag       bool
	dryRunFlag      bool

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string

	// History and metrics flags
	historyDBFlag   string
	metricsPortFlag int
	metricsFileFlag string
)

func init() {
	// Selection flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("SUITERUN_ENV", ""), "Environment name, selects suite-config-<env>.js (env: SUITERUN_ENV)")
	runCmd.Flags().StringArrayVarP(&tagsFlag, "tags", "t", getEnvList("SUITERUN_TAGS"), "Tag expression, repeatable; expressions are combined with and (env: SUITERUN_TAGS)")
	runCmd.Flags().IntVarP(&threadsFlag, "threads", "T", getEnvInt("SUITERUN_THREADS", 0), "Maximum features running at once (env: SUITERUN_THREADS)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("SUITERUN_RATE", 0), "Maximum feature starts per second, 0 is unlimited (env: SUITERUN_RATE)")

	// Configuration flags
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("SUITERUN_CONFIG", ""), "Path to project file (env: SUITERUN_CONFIG)")
	runCmd.Flags().StringVar(&configDirFlag, "config-dir", "", "Directory holding suite-config.js, file: or classpath: (env: "+config.ConfigDirEnv+")")
	runCmd.Flags().StringSliceVar(&classpathFlag, "classpath", nil, "Directories searched for classpath: resources")
	runCmd.Flags().StringVar(&buildDirFlag, "build-dir", getEnvString("SUITERUN_BUILD_DIR", ""), "Build directory (env: SUITERUN_BUILD_DIR)")
	runCmd.Flags().StringVar(&reportDirFlag, "report-dir", getEnvString("SUITERUN_REPORT_DIR", ""), "Report directory, defaults to <build-dir>/suite-reports (env: SUITERUN_REPORT_DIR)")
	runCmd.Flags().StringArrayVarP(&propertyFlags, "property", "D", nil, "System property key=value, repeatable")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("SUITERUN_ENV_FILE", ""), "Path to .env file of system properties (env: SUITERUN_ENV_FILE)")

	// Execution flags
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("SUITERUN_TIMEOUT", ""), "HTTP request timeout (e.g., 30s, 1m) (env: SUITERUN_TIMEOUT)")
	runCmd.Flags().StringVar(&stepTimeoutFlag, "step-timeout", getEnvString("SUITERUN_STEP_TIMEOUT", "0s"), "Bound for every run and http step, 0 disables (env: SUITERUN_STEP_TIMEOUT)")
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("SUITERUN_PROXY", ""), "Proxy URL for HTTP steps (env: SUITERUN_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("SUITERUN_INSECURE", false), "Disable SSL certificate validation (env: SUITERUN_INSECURE)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Show which features would run without executing them")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch feature files for changes and re-run")

	// Output flags
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("SUITERUN_OUTPUT", ""), "Output format: "+strings.Join(output.Formats, ", ")+" (env: SUITERUN_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("SUITERUN_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: SUITERUN_OUTPUT_FILE)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("SUITERUN_NOTIFY", ""), "Notification services: slack, teams (env: SUITERUN_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("SUITERUN_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: SUITERUN_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")

	// History and metrics flags
	runCmd.Flags().StringVar(&historyDBFlag, "history-db", getEnvString("SUITERUN_HISTORY_DB", ""), "SQLite file recording every run (env: SUITERUN_HISTORY_DB)")
	runCmd.Flags().IntVar(&metricsPortFlag, "metrics-port", getEnvInt("SUITERUN_METRICS_PORT", 0), "Serve Prometheus metrics on this port during the run (env: SUITERUN_METRICS_PORT)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("SUITERUN_METRICS_FILE", ""), "Write Prometheus metrics to this textfile after the run (env: SUITERUN_METRICS_FILE)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvList reads a single tag expression from key
func getEnvList(key string) []string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return []string{val}
	}
	return nil
}

// runSettings is everything a run needs once flags and files are merged
type runSettings struct {
	cfg         *config.Config
	properties  map[string]string
	stepTimeout time.Duration
	args        []string
}

func runCommand(cmd *cobra.Command, args []string) error {
	logger := log.Root()

	settings, err := loadRunSettings(cmd, args)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	features, err := loadFeatures(args)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	// Setup output writer
	var outWriter io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		outWriter = f
	}

	formatter, err := output.New(settings.cfg.Output, output.Options{
		Writer:  outWriter,
		Verbose: verboseFlag > 0,
		NoColor: settings.cfg.GetNoColor() || outputFileFlag != "",
	})
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	if dryRunFlag {
		return dryRun(cmd.OutOrStdout(), settings.cfg, features)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := startServices(ctx, settings.cfg, logger)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer services.close()

	formatter.FormatHeader(version)

	result, err := runOnce(ctx, settings, features, services, formatter, logger)
	if err != nil {
		return err
	}

	if !watchFlag {
		if code := resultExitCode(result); code != ExitSuccess {
			return withExitCode(code, nil)
		}
		return nil
	}

	return watch(ctx, cmd.OutOrStdout(), settings, services, formatter, logger)
}

// loadRunSettings layers the project file under the command line flags
func loadRunSettings(cmd *cobra.Command, args []string) (*runSettings, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	flagConfig := &config.Config{
		Environment: envFlag,
		Tags:        tagsFlag,
		Threads:     threadsFlag,
		ConfigDir:   configDirFlag,
		Classpath:   classpathFlag,
		BuildDir:    buildDirFlag,
		ReportDir:   reportDirFlag,
		Proxy:       proxyFlag,
		Rate:        rateFlag,
		Output:      strings.ToLower(outputFlag),
		HistoryDB:   historyDBFlag,
	}
	if threadsFlag < 0 {
		return nil, fmt.Errorf("%w: --threads must be at least 1", runner.ErrInvalidRunConfig)
	}
	if rateFlag < 0 {
		return nil, fmt.Errorf("%w: --rate must not be negative", runner.ErrInvalidRunConfig)
	}
	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		flagConfig.Timeout = int(timeout.Milliseconds())
	}
	if insecureFlag {
		flagConfig.ValidateSSL = config.BoolPtr(false)
	}
	if noColorFlag {
		flagConfig.NoColor = config.BoolPtr(true)
	}

	cfg := fileConfig.Merge(flagConfig)
	cfg.Notify = mergeNotify(cfg.Notify)
	cfg.Metrics = mergeMetrics(cfg.Metrics)

	stepTimeout, err := time.ParseDuration(stepTimeoutFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid step timeout value %q: %w", stepTimeoutFlag, err)
	}

	var dotenv map[string]string
	if envFileFlag != "" {
		dotenv, err = env.LoadDotEnv(envFileFlag)
		if err != nil {
			return nil, err
		}
	}
	cliProps, err := env.ParseProperties(propertyFlags)
	if err != nil {
		return nil, err
	}

	return &runSettings{
		cfg:         cfg,
		properties:  env.MergeProperties(dotenv, cfg.Properties, env.LoadSystemEnv(env.PropertyEnvPrefix), cliProps),
		stepTimeout: stepTimeout,
		args:        args,
	}, nil
}

func mergeNotify(fromFile *config.NotifyConfig) *config.NotifyConfig {
	n := &config.NotifyConfig{}
	if fromFile != nil {
		*n = *fromFile
	}
	if notifyOnFlag != "" {
		n.On = notifyOnFlag
	}
	if slackWebhookFlag != "" {
		n.SlackWebhook = slackWebhookFlag
	}
	if slackChannelFlag != "" {
		n.SlackChannel = slackChannelFlag
	}
	return n
}

func mergeMetrics(fromFile *config.MetricsConfig) *config.MetricsConfig {
	m := &config.MetricsConfig{}
	if fromFile != nil {
		*m = *fromFile
	}
	if metricsPortFlag > 0 {
		m.Port = metricsPortFlag
	}
	if metricsFileFlag != "" {
		m.File = metricsFileFlag
	}
	return m
}

func loadFeatures(args []string) ([]*feature.Feature, error) {
	files, err := feature.Collect(args...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no feature files (%s) found", strings.Join(feature.Extensions, ", "))
	}
	return feature.LoadAll(files)
}

func dryRun(w io.Writer, cfg *config.Config, features []*feature.Feature) error {
	selector, err := tags.Parse(cfg.Tags...)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	selected := 0
	for _, f := range features {
		if selector.Matches(f.Tags) {
			selected++
			fmt.Fprintf(w, "Would run:  %s", f.Key())
		} else {
			fmt.Fprintf(w, "Would skip: %s", f.Key())
		}
		if len(f.Tags) > 0 {
			fmt.Fprintf(w, " [%s]", strings.Join(f.Tags, " "))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%d of %d features selected by %q\n", selected, len(features), selector.String())
	return nil
}

// runServices are the hooks that outlive a single run in watch mode
type runServices struct {
	collector *metrics.Collector
	server    *metrics.Server
	store     *history.Store
	notifier  *notify.Manager
	metricsTo string
	logger    log.Logger
}

func startServices(ctx context.Context, cfg *config.Config, logger log.Logger) (*runServices, error) {
	svc := &runServices{logger: logger}

	if cfg.Metrics.Port > 0 || cfg.Metrics.File != "" {
		svc.collector = metrics.NewCollector()
		svc.metricsTo = cfg.Metrics.File
	}
	if cfg.Metrics.Port > 0 {
		server, err := svc.collector.Serve(fmt.Sprintf(":%d", cfg.Metrics.Port), logger)
		if err != nil {
			return nil, err
		}
		svc.server = server
	}

	if cfg.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), 0755); err != nil {
			svc.close()
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			svc.close()
			return nil, err
		}
		svc.store = store
	}

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		svc.close()
		return nil, err
	}
	svc.notifier = notifier

	if svc.notifier != nil && svc.store != nil {
		last, err := svc.store.Last(ctx, cfg.Environment)
		switch {
		case err == nil:
			svc.notifier.SetLastState(last.Success())
		case !errors.Is(err, history.ErrNoRuns):
			logger.Warn("Could not read last run", "err", err)
		}
	}

	return svc, nil
}

func buildNotifier(cfg *config.Config, logger log.Logger) (*notify.Manager, error) {
	if notifyFlag == "" {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(cfg.Notify.On)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range strings.Split(notifyFlag, ",") {
		service = strings.TrimSpace(service)
		switch strings.ToLower(service) {
		case "slack":
			if cfg.Notify.SlackWebhook == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			slackOpts := []notify.SlackOption{}
			if cfg.Notify.SlackChannel != "" {
				slackOpts = append(slackOpts, notify.WithSlackChannel(cfg.Notify.SlackChannel))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notify.SlackWebhook, slackOpts...))

		case "teams":
			if teamsWebhookFlag == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(teamsWebhookFlag))

		case "":
		default:
			return nil, fmt.Errorf("unknown notification service %q", service)
		}
	}

	if len(notifiers) == 0 {
		return nil, nil
	}
	return notify.NewManager(notifyOn, logger, notifiers...), nil
}

func (svc *runServices) hooks() []runner.Hook {
	var hooks []runner.Hook
	if svc.collector != nil {
		hooks = append(hooks, svc.collector)
	}
	// history is recorded before notifiers run
	if svc.store != nil {
		hooks = append(hooks, svc.store.Hook())
	}
	if svc.notifier != nil {
		hooks = append(hooks, svc.notifier.Hook())
	}
	return hooks
}

// afterRun writes the outputs that are not hooks
func (svc *runServices) afterRun() {
	if svc.collector != nil && svc.metricsTo != "" {
		if err := svc.collector.WriteTextfile(svc.metricsTo); err != nil {
			svc.logger.Warn("Could not write metrics file", "err", err)
		}
	}
}

func (svc *runServices) close() {
	if svc.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.server.Close(ctx); err != nil {
			svc.logger.Warn("Metrics server shutdown failed", "err", err)
		}
	}
	if svc.store != nil {
		if err := svc.store.Close(); err != nil {
			svc.logger.Warn("Closing history failed", "err", err)
		}
	}
}

func clientFactory(cfg *config.Config) http.Factory {
	opts := []http.ClientOption{
		http.WithTimeout(time.Duration(cfg.Timeout) * time.Millisecond),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.Headers))
	}
	return http.NewFactory(opts...)
}

// runOnce builds a fresh suite, runs it and reports the result
func runOnce(ctx context.Context, settings *runSettings, features []*feature.Feature, svc *runServices, formatter output.Formatter, logger log.Logger) (*runner.Result, error) {
	cfg := settings.cfg

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	suite, err := runner.NewSuite(&runner.Config{
		Environment: cfg.Environment,
		Tags:        cfg.Tags,
		WorkingDir:  wd,
		BuildDir:    cfg.BuildDir,
		ReportDir:   cfg.ReportDir,
		ConfigDir:   cfg.ConfigDir,
		Threads:     cfg.Threads,
		StartRate:   cfg.Rate,
		Locator: resource.NewLocator(
			resource.WithWorkingDir(wd),
			resource.WithClasspathDirs(cfg.Classpath...),
		),
		Hooks:            svc.hooks(),
		ClientFactory:    clientFactory(cfg),
		SystemProperties: settings.properties,
		Logger:           logger,
		Features:         features,
	})
	if err != nil {
		formatter.FormatError(err)
		return nil, withExitCode(ExitConfigError, err)
	}

	result, err := suite.Run(ctx, steps.New(steps.WithStepTimeout(settings.stepTimeout)))
	if err != nil {
		formatter.FormatError(err)
		return nil, withExitCode(ExitFatalError, err)
	}

	if err := formatter.FormatResult(result); err != nil {
		return nil, fmt.Errorf("error writing output: %w", err)
	}

	if path, err := output.WriteResultsFile(result.ReportDir, result); err != nil {
		logger.Warn("Could not write results file", "err", err)
	} else {
		logger.Debug("Wrote results file", "path", path)
	}
	svc.afterRun()

	return result, nil
}

// watch re-runs the suite whenever a feature file changes, until ctx is done
func watch(ctx context.Context, w io.Writer, settings *runSettings, svc *runServices, formatter output.Formatter, logger log.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, arg := range settings.args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			arg = filepath.Dir(arg)
		}
		_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && !watchedDirs[path] {
				if err := watcher.Add(path); err != nil {
					logger.Warn("Failed to watch directory", "dir", path, "err", err)
				}
				watchedDirs[path] = true
			}
			return nil
		})
	}

	fmt.Fprintf(w, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var (
		debounce <-chan time.Time
		changed  string
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && feature.IsFeatureFile(event.Name) {
				changed = event.Name
				debounce = time.After(WatchDebounceDelay)
			}

		case <-debounce:
			debounce = nil
			fmt.Fprintf(w, "\nFile changed: %s\nRe-running features...\n\n", changed)

			features, err := loadFeatures(settings.args)
			if err != nil {
				formatter.FormatError(err)
				continue
			}
			if _, err := runOnce(ctx, settings, features, svc, formatter, logger); err != nil {
				formatter.FormatError(err)
			}
			fmt.Fprintf(w, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			formatter.FormatError(fmt.Errorf("watcher error: %w", err))
		}
	}
}
