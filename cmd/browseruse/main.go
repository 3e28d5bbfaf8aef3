package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/taotie111/browser-use/internal/ai"
	"github.com/taotie111/browser-use/internal/allowlist"
	"github.com/taotie111/browser-use/internal/browser"
	"github.com/taotie111/browser-use/internal/config"
	"github.com/taotie111/browser-use/internal/explorer"
	"github.com/taotie111/browser-use/internal/logger"
	"github.com/taotie111/browser-use/internal/report"
)

var (
	configPath  string
	outputDir   string
	maxDepth    int
	domains     []string
	provider    string
	model       string
	noAnalyze   bool
	headful     bool
	profileDir  string
	archiveRun  bool
	archivePath string
	verbose     bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "browseruse <url>",
		Short: "Explore a website with a real browser and document it with AI",
		Long: `browseruse drives Chrome through a website, clicking its interactive
elements depth-first while an AI model describes what each page and element
is for. The run is written out as Markdown documentation, a JSON data file
and one screenshot per page.

Examples:
  browseruse "https://myapp.com"
  browseruse "https://myapp.com" --depth 2 --domains myapp.com,*.myapp.com
  browseruse "https://myapp.com" --provider openai --no-analyze=false --archive`,
		Args: cobra.ExactArgs(1),
		RunE: run,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: browseruse.yaml in cwd or XDG config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	rootCmd.PersistentFlags().StringVar(&archivePath, "archive-path", "", "SQLite archive location (default: XDG data dir)")

	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: exploration)")
	rootCmd.Flags().IntVar(&maxDepth, "depth", 0, "Maximum exploration depth (default: 3)")
	rootCmd.Flags().StringSliceVar(&domains, "domains", nil, "Allowed domain patterns, e.g. example.com,*.example.com (default: the start host)")
	rootCmd.Flags().StringVar(&provider, "provider", "", "AI provider: claude, openai (default: claude)")
	rootCmd.Flags().StringVar(&model, "model", "", "Model override for the chosen provider")
	rootCmd.Flags().BoolVar(&noAnalyze, "no-analyze", false, "Skip AI analysis and record structure only")
	rootCmd.Flags().BoolVar(&headful, "headful", false, "Run Chrome with a visible window")
	rootCmd.Flags().StringVar(&profileDir, "profile", "", "Chrome profile directory for authenticated sessions")
	rootCmd.Flags().BoolVar(&archiveRun, "archive", false, "Also store the run in the SQLite archive")

	rootCmd.AddCommand(runsCmd(), reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	startURL := args[0]
	logger.SetVerbose(verbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logVerbose("Exploration settings:")
	logVerbose("  URL:    %s", startURL)
	logVerbose("  Depth:  %d", cfg.Crawl.MaxDepth)
	logVerbose("  Output: %s", cfg.Output.Dir)

	matcher := allowlist.New(cfg.Crawl.AllowedDomains)
	if len(matcher.Patterns()) == 0 {
		matcher, err = allowlist.ForURL(startURL)
		if err != nil {
			return fmt.Errorf("invalid start URL: %w", err)
		}
	}
	logVerbose("  Domains: %v", matcher.Patterns())

	analyzer, err := buildAnalyzer(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("→ Launching browser at %s... ", startURL)
	session, err := browser.Launch(startURL, browser.Options{
		Width:              cfg.Browser.Width(),
		Height:             cfg.Browser.Height(),
		Headless:           cfg.Browser.IsHeadless(),
		ProfileDir:         cfg.Browser.ProfileDir,
		SettleTimeout:      cfg.Browser.Settle(),
		ScreenshotMaxWidth: cfg.Output.ScreenshotMaxWidth,
	})
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("browser launch failed: %w", err)
	}
	defer session.Close()
	fmt.Println("done")

	opts := explorer.Options{
		MaxDepth:       cfg.Crawl.MaxDepth,
		Allowed:        matcher,
		ContextWindow:  cfg.Analyzer.Window(),
		HighImportance: cfg.Analyzer.HighImportance,
		LowImportance:  cfg.Analyzer.LowImportance,
		ScreenshotDir:  filepath.Join(cfg.Output.Dir, "screenshots"),
		RunID:          uuid.NewString(),
	}
	if analyzer != nil {
		opts.Analyzer = analyzer
	}
	logVerbose("run %s", opts.RunID)

	// Ctrl-C cancels the traversal; whatever was captured so far is still
	// written out below.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("→ Exploring to depth %d... ", cfg.Crawl.MaxDepth)
	result, runErr := explorer.New(session, opts).Run(ctx, startURL)
	if runErr != nil {
		fmt.Printf("aborted after %d pages\n", len(result.Pages))
	} else {
		fmt.Printf("done (%d pages)\n", len(result.Pages))
	}

	fmt.Printf("→ Writing documentation to %s... ", cfg.Output.Dir)
	if err := report.Persist(cfg.Output.Dir, result); err != nil {
		fmt.Println("failed")
		return fmt.Errorf("report failed: %w", err)
	}
	fmt.Println("done")

	if archiveRun {
		fmt.Printf("→ Archiving run %s... ", result.RunID)
		if err := saveToArchive(cfg, result); err != nil {
			fmt.Println("failed")
			return fmt.Errorf("archive failed: %w", err)
		}
		fmt.Println("done")
	}

	if runErr != nil {
		fmt.Printf("⚠ Exploration stopped early: %v\n", runErr)
		return runErr
	}

	fmt.Printf("✓ Documented %d pages in %s\n", len(result.Pages), filepath.Join(cfg.Output.Dir, report.MarkdownFile))
	return nil
}

// runsCmd lists the runs stored in the SQLite archive.
func runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List archived exploration runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetVerbose(verbose)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			archive, err := report.OpenArchive(cfg.Output.Archive())
			if err != nil {
				return err
			}
			defer archive.Close()

			runs, err := archive.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No archived runs. Explore with --archive to store one.")
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %s  %3d pages  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04"), r.ID, r.PageCount, r.StartURL)
			}
			return nil
		},
	}
}

// reportCmd regenerates the documentation artifacts for an archived run.
func reportCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Rewrite the documentation for an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetVerbose(verbose)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Output.Dir
			}

			archive, err := report.OpenArchive(cfg.Output.Archive())
			if err != nil {
				return err
			}
			defer archive.Close()

			result, err := archive.LoadRun(args[0])
			if err != nil {
				return err
			}
			if err := report.Persist(dir, result); err != nil {
				return fmt.Errorf("report failed: %w", err)
			}
			fmt.Printf("✓ Documented %d pages in %s\n", len(result.Pages), filepath.Join(dir, report.MarkdownFile))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", "", "Output directory (default: exploration)")
	return cmd
}

// loadConfig reads the config file, if any, and applies the flag overrides.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Find()
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("config failed: %w", err)
		}
		cfg = loaded
		logVerbose("Loaded config from %s", path)
	}

	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if maxDepth > 0 {
		cfg.Crawl.MaxDepth = maxDepth
	}
	if len(domains) > 0 {
		cfg.Crawl.AllowedDomains = domains
	}
	if p := pickProvider(cfg.Analyzer.Provider); p != "" {
		cfg.Analyzer.Provider = p
	}
	if model != "" {
		cfg.Analyzer.Model = model
	}
	if headful {
		headless := false
		cfg.Browser.Headless = &headless
	}
	if profileDir != "" {
		cfg.Browser.ProfileDir = profileDir
	}
	if archivePath != "" {
		cfg.Output.ArchivePath = archivePath
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// pickProvider resolves the AI provider: flag, then environment, then config.
func pickProvider(fromConfig string) string {
	if provider != "" {
		return provider
	}
	if env := os.Getenv("BROWSERUSE_DEFAULT_PROVIDER"); env != "" {
		return env
	}
	return fromConfig
}

// buildAnalyzer wires the configured AI clients, or nothing with --no-analyze.
func buildAnalyzer(cfg config.Config) (*ai.Analyzer, error) {
	if noAnalyze {
		logVerbose("AI analysis disabled, recording structure only")
		return nil, nil
	}

	primary, err := ai.NewClient(cfg.Analyzer.Provider, cfg.Analyzer.Model)
	if err != nil {
		return nil, fmt.Errorf("AI provider failed: %w", err)
	}
	logVerbose("AI provider: %s", primary.Name())

	opts := ai.AnalyzerOptions{
		ErrorDir: filepath.Join(cfg.Output.Dir, "llm_json_errors"),
	}
	if cfg.Analyzer.FallbackProvider != "" && cfg.Analyzer.FallbackProvider != cfg.Analyzer.Provider {
		fallback, err := ai.NewClient(cfg.Analyzer.FallbackProvider, cfg.Analyzer.FallbackModel)
		if err != nil {
			logVerbose("Fallback provider unavailable: %v", err)
		} else {
			opts.Fallback = fallback
			logVerbose("Fallback provider: %s", fallback.Name())
		}
	}

	return ai.NewAnalyzer(primary, opts), nil
}

func saveToArchive(cfg config.Config, result *explorer.Result) error {
	archive, err := report.OpenArchive(cfg.Output.Archive())
	if err != nil {
		return err
	}
	defer archive.Close()
	return archive.SaveRun(result)
}

func logVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}
