// Package config loads the .sitei18n.yaml project configuration.
//
// Settings are resolved in this order (later wins): built-in defaults,
// .sitei18n.yaml in the project root, environment variables (a .env file in
// the project root is loaded first and never overrides the real
// environment), then command flags applied by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sxxw-site/sitei18n/langmeta"
	"github.com/sxxw-site/sitei18n/locale"
)

// FileName is the project config file name.
const FileName = ".sitei18n.yaml"

// Defaults.
const (
	DefaultBaseLang            = "zh-hans"
	DefaultPivotLang           = "en"
	DefaultSrcDir              = "src"
	DefaultDocsDir             = "docs"
	DefaultCacheFile           = ".cache/i18n_translate_cache.json"
	DefaultProtectedTermsFile  = "scripts/protected_terms.json"
	DefaultAPIKeyFile          = "scripts/apikey"
	DefaultWorkers             = 6
	DefaultMaxRetries          = 4
	DefaultCompletionThreshold = 0.85
	DefaultTimeout             = 60 * time.Second
	DefaultCompany             = "上海树下小屋网络科技有限公司"
	DefaultDarkBG              = "#0b1020"
	DefaultLightBG             = "#f8fafc"
)

// DefaultFirstHop lists the languages translated directly from the base.
var DefaultFirstHop = []string{"en", "zh-hant", "ja", "ko"}

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .sitei18n.yaml structure. Every field is optional.
type File struct {
	BaseLang            string   `yaml:"base_lang,omitempty"`
	BaseLangName        string   `yaml:"base_lang_name,omitempty"`
	PivotLang           string   `yaml:"pivot_lang,omitempty"`
	FirstHop            []string `yaml:"first_hop,omitempty"`
	SrcDir              string   `yaml:"src_dir,omitempty"`
	DocsDir             string   `yaml:"docs_dir,omitempty"`
	LanguagesFile       string   `yaml:"languages_file,omitempty"`
	LocalesDir          string   `yaml:"locales_dir,omitempty"`
	CacheFile           string   `yaml:"cache_file,omitempty"`
	Workers             int      `yaml:"workers,omitempty"`
	ProtectedTerms      []string `yaml:"protected_terms,omitempty"`
	ProtectedTermsFile  string   `yaml:"protected_terms_file,omitempty"`
	Provider            string   `yaml:"provider,omitempty"`
	Model               string   `yaml:"model,omitempty"`
	BaseURL             string   `yaml:"base_url,omitempty"`
	APIKeyFile          string   `yaml:"api_key_file,omitempty"`
	MaxRetries          int      `yaml:"max_retries,omitempty"`
	CompletionThreshold float64  `yaml:"completion_threshold,omitempty"`
	Timeout             string   `yaml:"timeout,omitempty"`

	Build FileBuild `yaml:"build,omitempty"`
}

// FileBuild is the build: section.
type FileBuild struct {
	Vars           map[string]string            `yaml:"vars,omitempty"`
	LangVars       map[string]map[string]string `yaml:"lang_vars,omitempty"`
	ExemptLiterals []string                     `yaml:"exempt_literals,omitempty"`
	BaseAlsoAtRoot *bool                        `yaml:"base_also_at_root,omitempty"`
	CriticalHead   FileCriticalHead             `yaml:"critical_head,omitempty"`
	SanitizeHTML   *bool                        `yaml:"sanitize_html,omitempty"`
}

// FileCriticalHead is the build.critical_head: section.
type FileCriticalHead struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	DarkBG  string `yaml:"dark_bg,omitempty"`
	LightBG string `yaml:"light_bg,omitempty"`
}

// LoadFile reads .sitei18n.yaml from rootDir. It returns nil, nil when the
// file does not exist. Unknown keys are rejected.
func LoadFile(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// ---------------------------------------------------------------------------
// Resolved configuration
// ---------------------------------------------------------------------------

// Config is the resolved project configuration. Paths are absolute.
type Config struct {
	Root string

	BaseLang     string
	BaseLangName string
	PivotLang    string
	FirstHop     []string

	SrcDir        string
	DocsDir       string
	LanguagesFile string
	LocalesDir    string
	CacheFile     string

	Workers            int
	ProtectedTerms     []string
	ProtectedTermsFile string

	Provider            string
	Model               string
	BaseURL             string
	APIKeyFile          string
	MaxRetries          int
	CompletionThreshold float64
	Timeout             time.Duration

	Build Build
}

// Build holds site build settings.
type Build struct {
	// Vars are interpolated into rendered text as {name}.
	Vars map[string]string
	// LangVars override Vars for languages whose code starts with the key.
	LangVars       map[string]map[string]string
	ExemptLiterals []string
	BaseAlsoAtRoot bool
	CriticalHead   CriticalHead
	SanitizeHTML   bool
}

// CriticalHead configures injection of the anti-flash head snippet.
type CriticalHead struct {
	Enabled bool
	DarkBG  string
	LightBG string
}

// Overrides carry command-line values. Zero fields are ignored.
type Overrides struct {
	BaseLang      string
	LanguagesFile string
	Workers       int
	MaxRetries    int
	Timeout       time.Duration
	Provider      string
	Model         string
	BaseURL       string
}

// Load resolves the configuration for the project at rootDir.
func Load(rootDir string) (*Config, error) {
	return LoadWith(rootDir, Overrides{})
}

// LoadWith is Load with command-line overrides applied last.
func LoadWith(rootDir string, o Overrides) (*Config, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}

	// .env never overrides variables that are already set.
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	f, err := LoadFile(root)
	if err != nil {
		return nil, err
	}
	if f == nil {
		f = &File{}
	}

	c := defaults(root)
	if err := c.applyFile(f); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(root, FileName), err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.applyOverrides(o)
	c.resolvePaths()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func defaults(root string) *Config {
	return &Config{
		Root:                root,
		BaseLang:            DefaultBaseLang,
		PivotLang:           DefaultPivotLang,
		FirstHop:            append([]string(nil), DefaultFirstHop...),
		SrcDir:              DefaultSrcDir,
		DocsDir:             DefaultDocsDir,
		CacheFile:           DefaultCacheFile,
		Workers:             DefaultWorkers,
		ProtectedTermsFile:  DefaultProtectedTermsFile,
		APIKeyFile:          DefaultAPIKeyFile,
		MaxRetries:          DefaultMaxRetries,
		CompletionThreshold: DefaultCompletionThreshold,
		Timeout:             DefaultTimeout,
		Build: Build{
			Vars: map[string]string{
				"company": DefaultCompany,
				"year":    strconv.Itoa(time.Now().Year()),
			},
			LangVars:       map[string]map[string]string{},
			BaseAlsoAtRoot: true,
			SanitizeHTML:   true,
			CriticalHead:   CriticalHead{DarkBG: DefaultDarkBG, LightBG: DefaultLightBG},
		},
	}
}

func (c *Config) applyFile(f *File) error {
	setString(&c.BaseLang, f.BaseLang)
	setString(&c.BaseLangName, f.BaseLangName)
	setString(&c.PivotLang, f.PivotLang)
	if len(f.FirstHop) > 0 {
		c.FirstHop = append([]string(nil), f.FirstHop...)
	}
	setString(&c.SrcDir, f.SrcDir)
	setString(&c.DocsDir, f.DocsDir)
	setString(&c.LanguagesFile, f.LanguagesFile)
	setString(&c.LocalesDir, f.LocalesDir)
	setString(&c.CacheFile, f.CacheFile)
	if f.Workers != 0 {
		c.Workers = f.Workers
	}
	c.ProtectedTerms = append(c.ProtectedTerms, f.ProtectedTerms...)
	setString(&c.ProtectedTermsFile, f.ProtectedTermsFile)
	setString(&c.Provider, f.Provider)
	setString(&c.Model, f.Model)
	setString(&c.BaseURL, f.BaseURL)
	setString(&c.APIKeyFile, f.APIKeyFile)
	if f.MaxRetries != 0 {
		c.MaxRetries = f.MaxRetries
	}
	if f.CompletionThreshold != 0 {
		c.CompletionThreshold = f.CompletionThreshold
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", f.Timeout, err)
		}
		c.Timeout = d
	}

	b := f.Build
	for k, v := range b.Vars {
		c.Build.Vars[k] = v
	}
	for prefix, vars := range b.LangVars {
		c.Build.LangVars[locale.NormalizeCode(prefix)] = vars
	}
	c.Build.ExemptLiterals = append(c.Build.ExemptLiterals, b.ExemptLiterals...)
	if b.BaseAlsoAtRoot != nil {
		c.Build.BaseAlsoAtRoot = *b.BaseAlsoAtRoot
	}
	if b.SanitizeHTML != nil {
		c.Build.SanitizeHTML = *b.SanitizeHTML
	}
	if b.CriticalHead.Enabled != nil {
		c.Build.CriticalHead.Enabled = *b.CriticalHead.Enabled
	}
	setString(&c.Build.CriticalHead.DarkBG, b.CriticalHead.DarkBG)
	setString(&c.Build.CriticalHead.LightBG, b.CriticalHead.LightBG)
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.BaseLang, os.Getenv("I18N_BASE"))
	setString(&c.SrcDir, os.Getenv("I18N_SRC_DIR"))
	setString(&c.DocsDir, os.Getenv("I18N_DOCS_DIR"))
	setString(&c.LanguagesFile, os.Getenv("I18N_LANGS_FILE"))
	setString(&c.LocalesDir, os.Getenv("I18N_LOCALES_DIR"))

	if v := strings.TrimSpace(os.Getenv("I18N_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("I18N_WORKERS: invalid number %q", v)
		}
		c.Workers = n
	}
	c.ProtectedTerms = append(c.ProtectedTerms, SplitList(os.Getenv("I18N_PROTECTED_TERMS"))...)

	if v := os.Getenv("I18N_COMPANY"); v != "" {
		c.Build.Vars["company"] = v
	}
	if v := os.Getenv("I18N_YEAR"); v != "" {
		c.Build.Vars["year"] = v
	}
	if v := os.Getenv("I18N_COMPANY_EN"); v != "" {
		en := c.Build.LangVars["en"]
		if en == nil {
			en = map[string]string{}
			c.Build.LangVars["en"] = en
		}
		en["company"] = v
	}
	c.Build.ExemptLiterals = append(c.Build.ExemptLiterals, SplitList(os.Getenv("I18N_EXEMPT_LITERALS"))...)

	if v, ok := os.LookupEnv("I18N_BASE_ALSO_AT_ROOT"); ok && v != "" {
		c.Build.BaseAlsoAtRoot = envBool(v)
	}
	if v, ok := os.LookupEnv("I18N_INJECT_CRITICAL_HEAD"); ok && v != "" {
		c.Build.CriticalHead.Enabled = envBool(v)
	}
	setString(&c.Build.CriticalHead.DarkBG, os.Getenv("I18N_CRITICAL_DARK_BG"))
	setString(&c.Build.CriticalHead.LightBG, os.Getenv("I18N_CRITICAL_LIGHT_BG"))
	return nil
}

func (c *Config) applyOverrides(o Overrides) {
	setString(&c.BaseLang, o.BaseLang)
	setString(&c.LanguagesFile, o.LanguagesFile)
	setString(&c.Provider, o.Provider)
	setString(&c.Model, o.Model)
	setString(&c.BaseURL, o.BaseURL)
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	if o.MaxRetries != 0 {
		c.MaxRetries = o.MaxRetries
	}
	if o.Timeout != 0 {
		c.Timeout = o.Timeout
	}
}

// resolvePaths makes every path absolute. Dependent defaults (manifest and
// locales dir) are derived from the final source dir.
func (c *Config) resolvePaths() {
	c.SrcDir = c.abs(c.SrcDir)
	c.DocsDir = c.abs(c.DocsDir)
	c.CacheFile = c.abs(c.CacheFile)
	c.ProtectedTermsFile = c.abs(c.ProtectedTermsFile)
	c.APIKeyFile = c.abs(c.APIKeyFile)

	if c.LanguagesFile == "" {
		c.LanguagesFile = filepath.Join(c.SrcDir, "assets", "languages.json")
	} else {
		c.LanguagesFile = c.abs(c.LanguagesFile)
	}

	if c.LocalesDir == "" {
		c.LocalesDir = c.pickLocalesDir()
	} else {
		c.LocalesDir = c.abs(c.LocalesDir)
	}

	if c.BaseLangName == "" {
		c.BaseLangName = langmeta.Name(c.BaseLang)
	}
}

// pickLocalesDir returns the first existing candidate, or <src>/locales.
func (c *Config) pickLocalesDir() string {
	candidates := []string{
		filepath.Join(c.SrcDir, "locales"),
		filepath.Join(c.Root, "locales"),
	}
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return candidates[0]
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseLang) == "" {
		return errors.New("base language is empty")
	}
	if strings.TrimSpace(c.PivotLang) == "" {
		return errors.New("pivot language is empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.CompletionThreshold <= 0 || c.CompletionThreshold > 1 {
		return fmt.Errorf("completion_threshold must be in (0, 1], got %v", c.CompletionThreshold)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Derived values
// ---------------------------------------------------------------------------

// LocaleFile returns the dictionary path for a language code.
func (c *Config) LocaleFile(code string) string {
	return filepath.Join(c.LocalesDir, locale.FileName(code))
}

// BaseFile returns the base dictionary path.
func (c *Config) BaseFile() string {
	return c.LocaleFile(c.BaseLang)
}

// VarsFor returns the interpolation variables for a language: the global
// vars overlaid with every lang_vars entry whose key prefixes the code.
func (c *Config) VarsFor(code string) map[string]string {
	norm := locale.NormalizeCode(code)
	out := make(map[string]string, len(c.Build.Vars))
	for k, v := range c.Build.Vars {
		out[k] = v
	}

	// Shorter prefixes first so "en-gb" overrides "en".
	var prefixes []string
	for prefix := range c.Build.LangVars {
		if prefix != "" && strings.HasPrefix(norm, prefix) {
			prefixes = append(prefixes, prefix)
		}
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) < len(prefixes[j]) })
	for _, prefix := range prefixes {
		for k, v := range c.Build.LangVars[prefix] {
			out[k] = v
		}
	}
	return out
}

// ReadAPIKeyFile returns the trimmed content of the api_key_file, or ""
// when it does not exist.
func (c *Config) ReadAPIKeyFile() string {
	if c.APIKeyFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.APIKeyFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SplitList splits a comma-separated list, dropping blank items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func envBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
