package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/PanelProbe/internal/logger"
	"github.com/PentesterFlow/PanelProbe/internal/output"
	"github.com/PentesterFlow/PanelProbe/internal/server"
	"github.com/PentesterFlow/PanelProbe/internal/shutdown"
	"github.com/PentesterFlow/PanelProbe/internal/trace"
	"github.com/PentesterFlow/PanelProbe/pkg/prober"
)

var (
	version = "1.0.0"

	// Global flags
	configFile    string
	providersFile string
	verbose       bool
	debug         bool
	logLevel      string
	traceDB       string

	// Engine flags
	authTimeout      time.Duration
	discoveryTimeout time.Duration
	rateLimit        float64
	proxyURL         string
	userAgent        string

	// Probe flags
	username       string
	password       string
	providerID     string
	headers        []string
	cookie         string
	cfClearance    string
	endpointPath   string
	endpointMethod string
	payload        string
	steps          []string
	outputFormat   string
	outputFile     string
	pretty         bool
	stream         bool

	// Serve flags
	listenAddr   string
	allowOrigins []string

	// Trace flags
	traceLimit int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "panelprobe",
		Short: "PanelProbe - reseller panel credential checker",
		Long: `PanelProbe checks whether a username/password pair authenticates against a
reseller panel whose login dialect is unknown.

It tries the Xtream player API, form/session login with CSRF handling, and
JSON login endpoints, and explains the failure when nothing accepts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
	}

	probeCmd := &cobra.Command{
		Use:   "probe [baseURL]",
		Short: "Check one set of credentials",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE:  runServe,
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List known panel providers",
		RunE:  runProviders,
	}

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded probes",
	}
	traceListCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded probes, newest first",
		RunE:  runTraceList,
	}
	traceShowCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one recorded probe",
		Args:  cobra.ExactArgs(1),
		RunE:  runTraceShow,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&providersFile, "providers", "", "Extra provider catalog (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log every outbound call")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&traceDB, "trace-db", "", "Trace database path (empty disables recording)")

	// Engine flags
	for _, cmd := range []*cobra.Command{probeCmd, serveCmd} {
		cmd.Flags().DurationVar(&authTimeout, "auth-timeout", 15*time.Second, "Deadline for credential-bearing calls")
		cmd.Flags().DurationVar(&discoveryTimeout, "discovery-timeout", 10*time.Second, "Deadline for discovery and verification calls")
		cmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 10, "Requests per second per probe (0 = unlimited)")
		cmd.Flags().StringVar(&proxyURL, "proxy", "", "HTTP proxy URL")
		cmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent sent to panels")
	}

	// Probe flags
	probeCmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	probeCmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	probeCmd.Flags().StringVar(&providerID, "provider", "", "Provider hint (see 'panelprobe providers')")
	probeCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header as key=value (repeatable)")
	probeCmd.Flags().StringVar(&cookie, "cookie", "", "Cookie header seed")
	probeCmd.Flags().StringVar(&cfClearance, "cf-clearance", "", "cf_clearance cookie value")
	probeCmd.Flags().StringVar(&endpointPath, "endpoint", "", "JSON login endpoint override")
	probeCmd.Flags().StringVar(&endpointMethod, "method", "", "Method for --endpoint (default POST)")
	probeCmd.Flags().StringVar(&payload, "payload", "", "JSON login payload with {{username}}/{{password}} placeholders")
	probeCmd.Flags().StringArrayVar(&steps, "step", nil, "Test step as type=ep1,ep2 (repeatable)")
	probeCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, text)")
	probeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	probeCmd.Flags().BoolVar(&pretty, "pretty", true, "Indent JSON output")
	probeCmd.Flags().BoolVar(&stream, "stream", false, "Print attempts as they happen")
	probeCmd.MarkFlagRequired("username")
	probeCmd.MarkFlagRequired("password")

	// Serve flags
	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", ":8080", "Listen address")
	serveCmd.Flags().StringSliceVar(&allowOrigins, "allow-origin", []string{"*"}, "CORS allowed origins")

	// Trace flags
	traceListCmd.Flags().IntVarP(&traceLimit, "limit", "n", 20, "Maximum records to list (0 = all)")

	traceCmd.AddCommand(traceListCmd, traceShowCmd)
	rootCmd.AddCommand(probeCmd, serveCmd, providersCmd, traceCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger applies --log-level; --verbose and --debug take precedence.
func setupLogger() error {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	if verbose {
		level = logger.InfoLevel
	}
	if debug {
		level = logger.DebugLevel
	}
	logger.SetGlobal(logger.New(logger.Config{
		Level:  level,
		Pretty: true,
		Output: os.Stderr,
	}))
	return nil
}

// buildConfig loads the config file and applies explicitly set flags over it.
func buildConfig(cmd *cobra.Command) (*prober.Config, error) {
	config := prober.DefaultConfig()
	if configFile != "" {
		loaded, err := prober.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("auth-timeout") {
		config.AuthTimeout = authTimeout
	}
	if flags.Changed("discovery-timeout") {
		config.DiscoveryTimeout = discoveryTimeout
	}
	if flags.Changed("rate-limit") {
		config.RateLimit.RequestsPerSecond = rateLimit
	}
	if flags.Changed("proxy") {
		config.Proxy = proxyURL
	}
	if flags.Changed("user-agent") {
		config.UserAgent = userAgent
	}
	if providersFile != "" {
		config.ProviderFile = providersFile
	}
	return config, nil
}

func newProber(cmd *cobra.Command) (*prober.Prober, error) {
	config, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}
	return prober.New(prober.WithConfig(config))
}

func openTraces() (*trace.Store, error) {
	if traceDB == "" {
		return nil, nil
	}
	return trace.Open(traceDB)
}

func runProbe(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(args[0])
	if err != nil {
		return err
	}

	p, err := newProber(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	w := output.NewWriter(out, output.Config{Format: outputFormat, Pretty: pretty, Stream: stream})

	sh := shutdown.New(shutdown.DefaultConfig())
	sh.Listen()
	defer sh.Shutdown()

	res := p.Stream(sh.Context(), req, func(a prober.Attempt) {
		w.WriteAttempt(a)
	})

	if err := w.WriteResult(res); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	store, err := openTraces()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		if err := store.Save(trace.NewRecord(req, res)); err != nil {
			return fmt.Errorf("failed to record trace: %w", err)
		}
	}

	if !res.Success {
		return fmt.Errorf("%s", res.Details)
	}
	return nil
}

func buildRequest(baseURL string) (prober.Request, error) {
	req := prober.Request{
		BaseURL:        baseURL,
		Username:       username,
		Password:       password,
		ProviderID:     providerID,
		Cookie:         cookie,
		CFClearance:    cfClearance,
		EndpointPath:   endpointPath,
		EndpointMethod: endpointMethod,
	}

	var err error
	if req.ExtraHeaders, err = parseHeaders(headers); err != nil {
		return req, err
	}
	if req.TestSteps, err = parseSteps(steps); err != nil {
		return req, err
	}
	if req.LoginPayload, err = parsePayload(payload); err != nil {
		return req, err
	}
	return req, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Global()

	p, err := newProber(cmd)
	if err != nil {
		return err
	}

	store, err := openTraces()
	if err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	cfg.Addr = listenAddr
	cfg.AllowOrigins = allowOrigins
	srv := server.New(cfg, p, store, log)

	sh := shutdown.New(shutdown.Config{Logger: log})
	sh.RegisterFunc("prober", p.Close)
	if store != nil {
		sh.Register("traces", func(ctx context.Context) error { return store.Close() })
	}
	sh.RegisterServer("http", srv)
	done := sh.Listen()

	if err := srv.ListenAndServe(); err != nil {
		sh.Shutdown()
		return err
	}
	<-done
	return nil
}

func runProviders(cmd *cobra.Command, args []string) error {
	p, err := newProber(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	for _, prov := range p.Registry().List() {
		name := prov.Name
		if name == "" {
			name = prov.ID
		}
		fmt.Printf("%-12s %-14s %-24s login=%s\n", prov.ID, prov.Dialect, name, prov.Login())
	}
	return nil
}

func runTraceList(cmd *cobra.Command, args []string) error {
	store, err := requireTraces()
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.List(traceLimit)
	if err != nil {
		return err
	}
	for _, s := range list {
		verdict := "FAIL"
		if s.Success {
			verdict = "OK  "
		}
		detail := s.Type
		if !s.Success {
			detail = s.Details
		}
		fmt.Printf("%s  %s  %s  %s@%s  %d attempts  %s\n",
			s.ID, s.CreatedAt.Format(time.RFC3339), verdict, s.Username, s.BaseURL, s.Attempts, detail)
	}
	return nil
}

func runTraceShow(cmd *cobra.Command, args []string) error {
	store, err := requireTraces()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("trace %s not found", args[0])
	}
	return printJSON(os.Stdout, rec)
}

func requireTraces() (*trace.Store, error) {
	if traceDB == "" {
		return nil, fmt.Errorf("--trace-db is required")
	}
	return trace.Open(traceDB)
}
