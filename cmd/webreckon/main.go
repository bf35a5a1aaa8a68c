package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	werrors "github.com/atharvkhisti/WebReckon/internal/errors"
	"github.com/atharvkhisti/WebReckon/internal/logger"
	"github.com/atharvkhisti/WebReckon/internal/progress"
	"github.com/atharvkhisti/WebReckon/internal/shutdown"
	"github.com/atharvkhisti/WebReckon/pkg/discovery"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
	logLevel   string

	// Navigation flags
	timeout        int
	waitAfterLoad  int
	maxRetries     int
	retryBackoff   int
	sessionTimeout int
	headful        bool
	strictTLS      bool
	proxies        []string
	userAgents     []string
	headers        []string
	bodyLimit      int

	// Exploration flags
	noScroll  bool
	noClick   bool
	noForms   bool
	noDynamic bool
	noScan    bool

	// Output flags
	outputDir   string
	historyFile string
	compact     bool

	// Feature flags
	probeSockets bool
	quickMode    bool

	// Display flags
	showProgress bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webreckon",
		Short: "WebReckon - API discovery through a headless browser",
		Long: `WebReckon - loads a target in a headless browser and catalogs the API calls it makes.

Intercepted traffic is classified (REST, GraphQL, JSON-RPC, gRPC-Web, WebSocket, SSE),
deduplicated into an endpoint catalog and written as a timestamped JSON artifact.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	discoverCmd := &cobra.Command{
		Use:   "discover [target]",
		Short: "Discover the APIs a page calls",
		Long:  "Load a target URL, explore it and catalog every API endpoint it talks to.",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiscover,
	}

	configCmd := &cobra.Command{
		Use:   "config [file]",
		Short: "Write the default configuration",
		Long:  "Write the default configuration to a file (.json or .yaml).",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfig,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides --verbose/--debug")

	// Navigation flags
	discoverCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Navigation timeout per attempt in seconds")
	discoverCmd.Flags().IntVarP(&waitAfterLoad, "wait", "w", 8, "Settle time after load in seconds")
	discoverCmd.Flags().IntVarP(&maxRetries, "retries", "r", 3, "Navigation attempts before the final load")
	discoverCmd.Flags().IntVar(&retryBackoff, "backoff", 2, "Pause between attempts in seconds")
	discoverCmd.Flags().IntVar(&sessionTimeout, "session-timeout", 300, "Whole session budget in seconds")
	discoverCmd.Flags().BoolVar(&headful, "headful", false, "Show the browser window")
	discoverCmd.Flags().BoolVar(&strictTLS, "strict-tls", false, "Reject invalid certificates")
	discoverCmd.Flags().StringArrayVar(&proxies, "proxy", nil, "Proxy URL, rotated on retries (repeatable)")
	discoverCmd.Flags().StringArrayVar(&userAgents, "user-agent", nil, "User agent, rotated on retries (repeatable)")
	discoverCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra request header 'Name: value' (repeatable)")
	discoverCmd.Flags().IntVar(&bodyLimit, "body-limit", 2048, "Response bytes kept per exchange")

	// Exploration flags
	discoverCmd.Flags().BoolVar(&noScroll, "no-scroll", false, "Disable incremental scrolling")
	discoverCmd.Flags().BoolVar(&noClick, "no-click", false, "Disable clicking interactive elements")
	discoverCmd.Flags().BoolVar(&noForms, "no-forms", false, "Disable form filling and submission")
	discoverCmd.Flags().BoolVar(&noDynamic, "no-dynamic", false, "Disable hover and lazy-load triggers")
	discoverCmd.Flags().BoolVar(&noScan, "no-scan", false, "Disable the page source scan")

	// Output flags
	discoverCmd.Flags().StringVarP(&outputDir, "output", "o", "results", "Artifact directory (empty disables)")
	discoverCmd.Flags().StringVar(&historyFile, "history", "results/history.db", "Run history database (empty disables)")
	discoverCmd.Flags().BoolVar(&compact, "compact", false, "Write compact JSON")

	// Feature flags
	discoverCmd.Flags().BoolVar(&probeSockets, "probe-websockets", false, "Handshake discovered WebSocket endpoints")
	discoverCmd.Flags().BoolVar(&quickMode, "quick", false, "Quick mode: one attempt, short settle, no forms")

	// Display flags
	discoverCmd.Flags().BoolVar(&showProgress, "progress", true, "Show live progress")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process status: 2 for bad input, 130 for
// an interrupted run, 1 otherwise.
func exitCode(err error) int {
	switch werrors.KindOf(err) {
	case werrors.InvalidInput:
		return 2
	case werrors.Cancelled:
		return 130
	default:
		return 1
	}
}

func buildConfig(cmd *cobra.Command, target string) (*discovery.Config, error) {
	var config *discovery.Config
	switch {
	case configFile != "":
		fileConfig, err := discovery.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	case quickMode:
		config = discovery.QuickConfig()
	default:
		config = discovery.DefaultConfig()
	}

	config.Target = target

	// Command-line flags take precedence over the file
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if flags.Changed("wait") {
		config.WaitAfterLoad = time.Duration(waitAfterLoad) * time.Second
	}
	if flags.Changed("retries") {
		config.MaxRetries = maxRetries
	}
	if flags.Changed("backoff") {
		config.RetryBackoff = time.Duration(retryBackoff) * time.Second
	}
	if flags.Changed("session-timeout") {
		config.SessionTimeout = time.Duration(sessionTimeout) * time.Second
	}
	if flags.Changed("body-limit") {
		config.BodyLimit = bodyLimit
	}
	if flags.Changed("output") {
		config.Output.Dir = outputDir
	}
	if flags.Changed("history") {
		config.Output.History = historyFile
	}
	if headful {
		config.Browser.Headless = false
	}
	if strictTLS {
		config.Browser.IgnoreHTTPSErrors = false
	}
	if compact {
		config.Output.Pretty = false
	}

	config.Proxies = append(config.Proxies, proxies...)
	config.UserAgents = append(config.UserAgents, userAgents...)

	if len(headers) > 0 {
		parsed, err := parseHeaders(headers)
		if err != nil {
			return nil, err
		}
		if config.Browser.ExtraHeaders == nil {
			config.Browser.ExtraHeaders = make(map[string]string)
		}
		for k, v := range parsed {
			config.Browser.ExtraHeaders[k] = v
		}
	}

	if noScroll {
		config.Explore.Scroll = false
	}
	if noClick {
		config.Explore.Click = false
	}
	if noForms {
		config.Explore.Forms = false
	}
	if noDynamic {
		config.Explore.Dynamic = false
	}
	if noScan {
		config.Explore.SourceScan = false
	}
	if probeSockets {
		config.ProbeSockets = true
	}
	config.Verbose = config.Verbose || verbose
	config.Debug = config.Debug || debug

	return config, nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	enableProgress := showProgress && !config.Verbose && !config.Debug
	display := progress.New()

	opts := []discovery.Option{discovery.WithConfig(config)}
	if logLevel != "" {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return werrors.NewInvalidInputError("", fmt.Sprintf("invalid log level %q", logLevel))
		}
		lc := logger.DefaultConfig()
		lc.Level = level
		lc.Component = "discovery"
		opts = append(opts, discovery.WithLogger(logger.New(lc)))
		enableProgress = enableProgress && level > logger.InfoLevel
	}
	if enableProgress {
		opts = append(opts, discovery.WithProgress(display.Update, 250*time.Millisecond))
	}

	d, err := discovery.New(opts...)
	if err != nil {
		return err
	}

	// First signal cancels the session so the partial catalog is still
	// written; a second one exits immediately.
	sh := shutdown.New(context.Background(), shutdown.DefaultConfig())
	sh.Register("discoverer", func(context.Context) error {
		return d.Close()
	})

	display.Start(config.Target)
	if !enableProgress {
		printBanner(config)
	}

	started := time.Now()
	run, runErr := d.Run(sh.Context())
	elapsed := time.Since(started)

	display.Stop()
	if sh.Interrupted() {
		fmt.Fprintln(os.Stderr, "\nInterrupted, partial results saved")
	}

	if run != nil {
		display.PrintSummary(run.State, run.Summary, elapsed)
		printRun(run)
	}

	if res := sh.Shutdown(); res.HasErrors() {
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "Shutdown: %v\n", e)
		}
	}

	return runErr
}

func runConfig(cmd *cobra.Command, args []string) error {
	config := discovery.DefaultConfig()
	if quickMode {
		config = discovery.QuickConfig()
	}
	if err := config.SaveToFile(args[0]); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", args[0])
	return nil
}

func printBanner(config *discovery.Config) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       WebReckon v1.0                         ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Target:      %s\n", config.Target)
	fmt.Printf("Timeout:     %v\n", config.Timeout)
	fmt.Printf("Retries:     %d\n", config.MaxRetries)
	fmt.Printf("Proxies:     %d\n", len(config.Proxies))
	fmt.Println()
	fmt.Println("Starting discovery...")
	fmt.Println()
}
