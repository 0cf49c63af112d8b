// sitei18n: static-site localization with AI translation.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sxxw-site/sitei18n/config"
	"github.com/sxxw-site/sitei18n/i18n"
	"github.com/sxxw-site/sitei18n/mask"
	"github.com/sxxw-site/sitei18n/merge"
	"github.com/sxxw-site/sitei18n/pipeline"
	"github.com/sxxw-site/sitei18n/settings"
	"github.com/sxxw-site/sitei18n/site"
	"github.com/sxxw-site/sitei18n/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ---------------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------------

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Log formats are message IDs in the tool's own catalog.
func logInfo(format string, args ...any) {
	fmt.Fprintln(os.Stderr, infoStyle.Render("[INFO]")+" "+i18n.Tf(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, successStyle.Render("[OK]")+" "+i18n.Tf(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, warningStyle.Render("[WARN]")+" "+i18n.Tf(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("[ERROR]")+" "+i18n.Tf(format, args...))
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir   string
	baseLang  string
	langsFile string
)

// loadConfig resolves the project config with the global flags applied.
func loadConfig(o config.Overrides) (*config.Config, error) {
	o.BaseLang = baseLang
	o.LanguagesFile = langsFile
	return config.LoadWith(rootDir, o)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sitei18n",
		Short: "Localize a static site with AI translation",
		Long: `sitei18n renders a multi-language static site from one HTML template tree
and per-language JSON dictionaries, and keeps those dictionaries translated.

Translation runs in two hops: the base language (zh-hans) is translated into
the first-hop languages (en, zh-hant, ja, ko), then the pivot (en) is
translated into every other language of the manifest.

Commands:
  translate   Translate locale files (first hop, second hop or both)
  build       Render the site into docs/
  clean       Delete keys from translated locale files
  sort        Sort locale files by key path
  status      Show translation progress per language
  auth        Manage stored API keys

Run without a command for the interactive menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&baseLang, "base", "", "Base language code (default zh-hans, or I18N_BASE)")
	root.PersistentFlags().StringVar(&langsFile, "languages", "", "Language manifest (default <src>/assets/languages.json)")

	root.AddCommand(
		newTranslateCmd(),
		newBuildCmd(),
		newCleanCmd(),
		newSortCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
		newMenuCmd(),
	)
	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sitei18n version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	hop, mode, langs string
	dryRun, verbose  bool
	provider         providerArgs
	workers          int
	maxRetries       int
}

// providerArgs are the flags that pick and reach a translation service.
type providerArgs struct {
	id, model, baseURL, apiKey, proxy string
	timeout                           time.Duration
}

func providerFlagSet(p *providerArgs) *pflag.FlagSet {
	fs := pflag.NewFlagSet("provider", pflag.ContinueOnError)
	fs.StringVar(&p.id, "provider", "", "AI provider: "+strings.Join(translate.ProviderIDs(), ", ")+" (default openai)")
	fs.StringVar(&p.model, "model", "", "Model name (default depends on provider)")
	fs.StringVar(&p.baseURL, "base-url", "", "Custom API base URL")
	fs.StringVar(&p.apiKey, "api-key", "", "API key (or "+settings.EnvAPIKey+")")
	fs.StringVar(&p.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	fs.DurationVar(&p.timeout, "timeout", 0, "Request timeout (default 60s)")
	return fs
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate locale files",
		Long: `Translate locale files with an AI provider.

The first hop translates the base file into the first-hop languages. The
second hop translates the pivot file into every other manifest language;
en-* variants copy the pivot and languages with an existing fallback file
copy that file instead.

In incremental mode existing non-empty strings are kept. Full mode
retranslates everything and rebuilds each file in base order.

Examples:
  sitei18n translate --hop first
  sitei18n translate --hop second --lang fr,de
  sitei18n translate --mode full --provider google --model gemini-2.0-flash
  sitei18n translate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&a.hop, "hop", "all", "Which hop to run: first, second or all")
	cmd.Flags().StringVar(&a.mode, "mode", "incremental", "incremental or full")
	cmd.Flags().StringVar(&a.langs, "lang", "", "Only these target languages (comma-separated)")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Show what would be translated without calling AI")
	cmd.Flags().BoolVar(&a.verbose, "verbose", false, "Enable detailed logging")
	cmd.Flags().IntVar(&a.workers, "workers", 0, "Concurrent requests (default 6, or I18N_WORKERS)")
	cmd.Flags().IntVar(&a.maxRetries, "max-retries", 0, "Attempts per string (default 4)")
	cmd.Flags().AddFlagSet(providerFlagSet(&a.provider))

	_ = cmd.RegisterFlagCompletionFunc("hop", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"first", "second", "all"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"incremental", "full"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return translate.ProviderIDs(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// parseHops maps the --hop value to the hops to run, in order.
func parseHops(s string) ([]pipeline.Hop, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "1":
		return []pipeline.Hop{pipeline.FirstHop}, nil
	case "second", "2":
		return []pipeline.Hop{pipeline.SecondHop}, nil
	case "", "all", "both":
		return []pipeline.Hop{pipeline.FirstHop, pipeline.SecondHop}, nil
	}
	return nil, fmt.Errorf("invalid --hop %q (want first, second or all)", s)
}

func runTranslate(ctx context.Context, a translateArgs) error {
	mode, ok := merge.ParseMode(a.mode)
	if !ok {
		return fmt.Errorf("invalid --mode %q (want incremental or full)", a.mode)
	}
	hops, err := parseHops(a.hop)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(config.Overrides{
		Workers:    a.workers,
		MaxRetries: a.maxRetries,
		Timeout:    a.provider.timeout,
		Provider:   a.provider.id,
		Model:      a.provider.model,
		BaseURL:    a.provider.baseURL,
	})
	if err != nil {
		return err
	}
	langs, err := cfg.Languages()
	if err != nil {
		return err
	}
	terms, err := cfg.LoadTerms()
	if err != nil {
		logWarning("Protected terms: %v", err)
	}

	var factory translate.Factory
	if !a.dryRun {
		prov, src, err := resolveProvider(cfg, a.provider)
		if err != nil {
			return err
		}
		if err := validateProvider(prov); err != nil {
			return err
		}
		factory = translate.NewHTTPFactory(prov, a.verbose)
		logInfo("Provider: %s, model: %s", prov.Name, prov.Model)
		if src != settings.SourceNone {
			logInfo("API key from %s: %s", string(src), settings.MaskKey(prov.APIKey))
		}
	}

	logInfo("Base: %s (%s), pivot: %s, workers: %d, protected terms: %d",
		cfg.BaseLang, cfg.BaseLangName, cfg.PivotLang, cfg.Workers, len(terms))

	p := pipeline.New(cfg, langs, mask.NewTerms(terms...), factory, driverOptions(cfg, a.verbose))
	p.Log = logInfo
	opts := pipeline.Options{Mode: mode, Langs: config.SplitList(a.langs), DryRun: a.dryRun}

	for _, h := range hops {
		logInfo("%s (%s)", h.String(), mode.String())
		reports, err := p.Run(ctx, h, opts)
		printReports(reports)
		if err != nil {
			return err
		}
		if !a.dryRun {
			logSuccess("Cache saved: %s", cfg.CacheFile)
		}
	}
	return nil
}

// driverOptions wires the driver callbacks to the terminal.
func driverOptions(cfg *config.Config, verbose bool) translate.Options {
	return translate.Options{
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxRetries,
		Threshold:   cfg.CompletionThreshold,
		Verbose:     verbose,
		OnStart: func(lang string, seq, total int, path string) {
			if verbose {
				fmt.Fprintf(os.Stderr, "⏳ [%s] start (seq:%d/%d)  %s\n", lang, seq, total, path)
			}
		},
		OnProgress: func(lang string, ok bool, done, total, seq int, path string) {
			mark := successStyle.Render("✅")
			if !ok {
				mark = warningStyle.Render("⚠")
			}
			fmt.Fprintf(os.Stderr, "%s [%s] (%d/%d)  %s  %s\n", mark, lang, done, total, path, mutedStyle.Render(fmt.Sprintf("(seq:%d)", seq)))
		},
		OnTranslation: func(lang, path, src, tgt string) {
			if verbose {
				fmt.Fprintf(os.Stderr, "[%s] %s\n  SRC: %s\n  TGT: %s\n\n", lang, path, src, tgt)
			}
		},
		OnLog:   logInfo,
		OnError: logWarning,
	}
}

func printReports(reports []pipeline.Report) {
	for _, r := range reports {
		switch r.Action {
		case pipeline.ActionTranslated:
			logSuccess("[%s] %d/%d translated from %s (cached %d, protected %d): %s",
				r.Code, r.Summary.Succeeded, r.Summary.Total, r.From, r.Cached, r.Protected, r.Path)
		case pipeline.ActionCopiedPivot, pipeline.ActionCopiedFallback:
			logInfo("[%s] %s %s: %s", r.Code, string(r.Action), r.From, r.Path)
		case pipeline.ActionConverted:
			logInfo("[%s] converted from %s without translation: %s", r.Code, r.From, r.Path)
		case pipeline.ActionPlanned:
			logInfo("[%s] would translate %d strings from %s (cached %d, protected %d)",
				r.Code, r.Queued, r.From, r.Cached, r.Protected)
		}
	}
}

// resolveProvider builds the provider from config and flags and picks its
// API key.
func resolveProvider(cfg *config.Config, a providerArgs) (translate.Provider, settings.Source, error) {
	id := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if id == "" {
		id = translate.DefaultProvider
	}
	prov, ok := translate.LookupProvider(id)
	if !ok {
		return prov, settings.SourceNone, fmt.Errorf("unknown provider %q (available: %s)", id, strings.Join(translate.ProviderIDs(), ", "))
	}

	store, err := settings.Open()
	if err != nil {
		logWarning("Credential store unavailable: %v", err)
	}
	var stored settings.Entry
	if store != nil {
		stored, _ = store.Get(id)
	}

	switch {
	case cfg.BaseURL != "":
		prov.BaseURL = cfg.BaseURL
	case stored.BaseURL != "":
		prov.BaseURL = stored.BaseURL
	}
	switch {
	case cfg.Model != "":
		prov.Model = cfg.Model
	case stored.Model != "":
		prov.Model = stored.Model
	}
	prov.Timeout = cfg.Timeout
	prov.Proxy = a.proxy

	key, src := settings.ResolveAPIKey(settings.KeyQuery{
		Provider: id,
		Flag:     a.apiKey,
		EnvKeys:  prov.EnvKeys,
		FileKey:  cfg.ReadAPIKeyFile(),
	}, store)
	prov.APIKey = key
	return prov, src, nil
}

// validateProvider explains how to fix a provider that cannot be called.
func validateProvider(prov translate.Provider) error {
	if prov.ID == translate.ProviderCustomOpenAI && prov.BaseURL == "" {
		return fmt.Errorf("provider 'custom-openai' requires an endpoint URL\n\n" +
			"Option 1: Store it with the key:\n" +
			"  sitei18n auth login --provider custom-openai --base-url https://api.example.com/v1\n\n" +
			"Option 2: Pass it directly:\n" +
			"  --base-url https://api.example.com/v1")
	}
	if prov.NeedsAPIKey() && prov.APIKey == "" {
		envs := append([]string{settings.EnvAPIKey}, prov.EnvKeys...)
		return fmt.Errorf("provider '%s' requires an API key\n\n"+
			"Option 1: Store your API key:\n"+
			"  sitei18n auth login --provider %s\n\n"+
			"Option 2: Pass it directly:\n"+
			"  --api-key YOUR_KEY or export one of %s\n\n"+
			"Option 3: Put it in the project's api_key_file (default scripts/apikey)",
			prov.ID, prov.ID, strings.Join(envs, ", "))
	}
	if prov.ID == translate.ProviderOllama {
		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(strings.TrimSuffix(strings.TrimSuffix(prov.BaseURL, "/"), "/v1") + "/api/tags")
		if err != nil {
			return fmt.Errorf("provider 'ollama' requires Ollama server to be running\n\n" +
				"Start Ollama with: ollama serve\n" +
				"Install from: https://ollama.com")
		}
		resp.Body.Close()
	}
	return prov.Validate()
}

// ---------------------------------------------------------------------------
// build
// ---------------------------------------------------------------------------

func newBuildCmd() *cobra.Command {
	var (
		watch    bool
		debounce time.Duration
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Render the site into docs/",
		Long: `Render every HTML template under the source directory once per manifest
language into docs/<code>/. The base language is also written to docs/.
Assets are copied to docs/assets/ and relative asset URLs are rewritten.

With --watch the site is rebuilt whenever a template, asset, locale file or
the manifest changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), watch, debounce, verbose)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild on changes until interrupted")
	cmd.Flags().DurationVar(&debounce, "debounce", site.DefaultDebounce, "Quiet period before a rebuild")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every language")
	return cmd
}

func runBuild(ctx context.Context, watch bool, debounce time.Duration, verbose bool) error {
	cfg, err := loadConfig(config.Overrides{})
	if err != nil {
		return err
	}
	b := site.NewBuilder(cfg)
	if verbose {
		b.Log = logInfo
	}

	if !watch {
		res, err := b.Build()
		if err != nil {
			return err
		}
		reportBuild(cfg, res)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logInfo("Watching %s (Ctrl+C to stop)", cfg.SrcDir)
	return b.Watch(ctx, debounce, func(res site.Result, err error) {
		if err != nil {
			logError("%v", err)
			return
		}
		reportBuild(cfg, res)
	})
}

func reportBuild(cfg *config.Config, res site.Result) {
	logSuccess("Build complete")
	logInfo("Output: %s (%d languages, %d pages, %d assets)", cfg.DocsDir, res.Languages, res.Pages, res.Assets)
	if cfg.Build.CriticalHead.Enabled {
		logInfo("Critical head injected: dark=%s light=%s", cfg.Build.CriticalHead.DarkBG, cfg.Build.CriticalHead.LightBG)
	}
}

// ---------------------------------------------------------------------------
// clean / sort / status
// ---------------------------------------------------------------------------

// maintenance returns a pipeline for the operations that never translate.
func maintenance() (*pipeline.Pipeline, *config.Config, error) {
	cfg, err := loadConfig(config.Overrides{})
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(cfg, nil, nil, nil, translate.Options{}), cfg, nil
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean PATTERN...",
		Short: "Delete keys from translated locale files",
		Long: `Delete keys from every translated locale file. The base file is never
touched and files are not re-sorted.

A pattern is an exact key path or a prefix: "home.*", "home." and "home*"
all remove home and everything below it. Patterns may also be given as
one comma-separated argument.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(strings.Join(args, ","))
		},
	}
}

func runClean(list string) error {
	p, cfg, err := maintenance()
	if err != nil {
		return err
	}
	rep, err := p.Clean(list)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoPatterns) {
			return errors.New(i18n.T("No valid keys given"))
		}
		return err
	}
	if len(rep.Files) == 0 {
		logWarning("No translated locale files to clean")
		return nil
	}
	for _, f := range rep.Files {
		if f.Count > 0 {
			logInfo("%s: removed %d", f.Name, f.Count)
		} else {
			logInfo("%s: no match, skipped", f.Name)
		}
	}
	logSuccess("Clean complete: %d removed (%s untouched)", rep.Total, cfg.BaseLang)
	return nil
}

func newSortCmd() *cobra.Command {
	var includeBase bool
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort locale files by key path",
		Long: `Rewrite every translated locale file flat, with keys ordered by key path
(numeric array indices, then nested keys).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSort(includeBase)
		},
	}
	cmd.Flags().BoolVar(&includeBase, "include-base", false, "Also sort the base file")
	return cmd
}

func runSort(includeBase bool) error {
	p, _, err := maintenance()
	if err != nil {
		return err
	}
	rep, err := p.Sort(includeBase)
	if err != nil {
		return err
	}
	if len(rep.Files) == 0 {
		logWarning("No locale files to sort")
		return nil
	}
	for _, name := range rep.Changed {
		logInfo("Sorted: %s", name)
	}
	logSuccess("Sort complete: %d files, %d reordered", len(rep.Files), len(rep.Changed))
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show translation progress per language",
		Long: `Show the project configuration and, for every manifest language, how many
base strings have a translation. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	cfg, err := loadConfig(config.Overrides{})
	if err != nil {
		return err
	}
	langs, err := cfg.Languages()
	if err != nil {
		return err
	}
	p := pipeline.New(cfg, langs, nil, nil, translate.Options{})
	stats, err := p.Status()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, headerStyle.Render(i18n.T("Project")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "root", cfg.Root)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "languages", cfg.LanguagesFile)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "locales", cfg.LocalesDir)
	fmt.Fprintf(os.Stderr, "  %-12s %s (%s)\n", "base", cfg.BaseLang, cfg.BaseLangName)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "pivot", cfg.PivotLang)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "first hop", strings.Join(cfg.FirstHop, ", "))
	fmt.Fprintln(os.Stderr)

	width := 0
	for _, s := range stats {
		width = max(width, len(s.Code))
	}
	fmt.Fprintln(os.Stderr, headerStyle.Render(i18n.T("Translations")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	for _, s := range stats {
		line := fmt.Sprintf("  %-*s  %s  %5d/%-5d", width, s.Code, progressBar(int(s.Percent()), 20), s.Filled, s.Total)
		switch {
		case s.Base:
			line += "  " + mutedStyle.Render(i18n.T("base"))
		case !s.Exists:
			line += "  " + warningStyle.Render(i18n.T("missing"))
		case s.Missing() > 0:
			line += "  " + mutedStyle.Render(i18n.Tf("%d untranslated", s.Missing()))
		}
		fmt.Fprintln(os.Stderr, line)
	}
	return nil
}

// progressBar renders a colored bar with the percentage right-aligned.
func progressBar(percent, width int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100

	style := errorStyle
	switch {
	case percent >= 100:
		style = successStyle
	case percent >= 50:
		style = warningStyle
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return style.Render(bar) + fmt.Sprintf(" %3d%%", percent)
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored API keys",
		Long: `Manage API keys stored in ` + "`$XDG_DATA_HOME/sitei18n/auth.json`" + `.

A key passed with --api-key, set in ` + settings.EnvAPIKey + ` or the provider's own
variable, or written to the project's api_key_file wins over the stored key.

Examples:
  sitei18n auth login --provider openai
  sitei18n auth login --provider custom-openai --base-url http://llm.local/v1
  sitei18n auth logout --provider openai
  sitei18n auth list`,
	}
	cmd.AddCommand(newAuthLoginCmd(), newAuthLogoutCmd(), newAuthListCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var provider, key, baseURL, model string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, ok := translate.LookupProvider(provider)
			if !ok {
				return fmt.Errorf("unknown provider %q (available: %s)", provider, strings.Join(translate.ProviderIDs(), ", "))
			}
			if !prov.NeedsAPIKey() {
				logInfo("%s needs no API key", prov.Name)
				return nil
			}
			store, err := settings.Open()
			if err != nil {
				return err
			}

			if key == "" {
				fmt.Fprintf(os.Stderr, "\n%s\n", headerStyle.Render(i18n.Tf("%s API key", prov.Name)))
				fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
				existing := store.APIKey(provider)
				if existing != "" {
					fmt.Fprintf(os.Stderr, "  %s %s\n", i18n.T("Current key:"), warningStyle.Render(settings.MaskKey(existing)))
					fmt.Fprint(os.Stderr, "  "+i18n.T("Enter new key to replace, or press Enter to keep: "))
				} else {
					fmt.Fprint(os.Stderr, "  "+i18n.T("Enter API key: "))
				}
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					key = strings.TrimSpace(scanner.Text())
				}
				if key == "" {
					if existing != "" {
						logInfo("Keeping existing key")
						return nil
					}
					return errors.New(i18n.T("No API key provided"))
				}
			}

			if err := store.Set(provider, settings.Entry{Key: key, BaseURL: baseURL, Model: model}); err != nil {
				return err
			}
			logSuccess("%s API key saved to %s", prov.Name, store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", translate.DefaultProvider, "Provider to store the key for")
	cmd.Flags().StringVar(&key, "key", "", "API key (prompted when omitted)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Endpoint URL to store with the key")
	cmd.Flags().StringVar(&model, "model", "", "Default model to store with the key")
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API keys",
		Long:  `Remove the stored key for one provider, or for all providers when --provider is omitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.Open()
			if err != nil {
				return err
			}
			targets := store.Providers()
			if provider != "" {
				targets = []string{provider}
			}
			for _, id := range targets {
				if err := store.Remove(id); err != nil {
					return fmt.Errorf("removing %s: %w", id, err)
				}
			}
			if provider != "" {
				logSuccess("%s credentials removed", provider)
			} else {
				logSuccess("All stored credentials removed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider to log out (default: all)")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored keys and environment overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.Open()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "\n%s\n", headerStyle.Render(i18n.T("Stored Credentials")))
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			for _, id := range translate.ProviderIDs() {
				prov, _ := translate.LookupProvider(id)
				status := errorStyle.Render(i18n.T("not configured"))
				switch e, ok := store.Get(id); {
				case !prov.NeedsAPIKey():
					status = mutedStyle.Render(i18n.T("no key needed"))
				case ok:
					status = successStyle.Render(i18n.T("configured")) + " (" + settings.MaskKey(e.Key) + ")"
					if e.BaseURL != "" {
						status += "  " + e.BaseURL
					}
				}
				fmt.Fprintf(os.Stderr, "  %-14s %s\n", id, status)
			}

			fmt.Fprintf(os.Stderr, "\n  %s\n", warningStyle.Render(i18n.T("Environment Variables")))
			if v := os.Getenv(settings.EnvAPIKey); v != "" {
				fmt.Fprintf(os.Stderr, "  %s: %s %s\n", settings.EnvAPIKey, successStyle.Render(settings.MaskKey(v)), i18n.T("(overrides stored keys)"))
			} else {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", settings.EnvAPIKey, errorStyle.Render(i18n.T("not set")))
			}
			fmt.Fprintf(os.Stderr, "\n  %s\n\n", mutedStyle.Render(store.Path()))
			return nil
		},
	}
}
