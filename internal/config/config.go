// Package config handles configuration loading and parsing for hookgate.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/logger"
	"github.com/dgerlanc/hookgate/internal/patterns"
)

//go:embed config.toml
var defaultConfig []byte

// maxIncludeDepth bounds include chains independently of cycle detection.
const maxIncludeDepth = 8

// Config holds the compiled configuration. It is built once per process
// and must not be mutated afterwards.
type Config struct {
	Security Security
	// Intents are evaluated in order; the order is also the output order.
	Intents []Intent
	Context Context
	Timeouts Timeouts
	Audit    Audit
}

// Security holds the tables used by the file-operation checks.
type Security struct {
	SensitiveExtensions []string
	SensitiveFilenames  []string
	SensitivePatterns   []patterns.Pattern
	BlockedDirectories  []string
	AllowedExceptions   []string
	HighSeverityTerms   []string
	EncodedTraversal    []string
}

// Intent is one named keyword class for prompt classification.
type Intent struct {
	Name     string
	Keywords []string
	Pattern  patterns.Pattern
}

// Context holds the prompt-path analyzer settings.
type Context struct {
	Relevance            patterns.Pattern
	RecognizedExtensions []string
	LogGlobs             []string
	MaxLogBytes          int64
	ErrorPatterns        []patterns.Pattern
}

// Timeouts bound every subordinate tool call.
type Timeouts struct {
	Git         time.Duration
	LogScan     time.Duration
	ProjectScan time.Duration
	ToolProbe   time.Duration
	SelfTest    time.Duration
}

// Audit configures audit log rotation.
type Audit struct {
	MaxBytes int64
	Keep     int
}

// duration decodes Go duration strings such as "5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// fileConfig mirrors the TOML layout.
type fileConfig struct {
	Include  []string `toml:"include"`
	Security struct {
		SensitiveExtensions []string `toml:"sensitive_extensions"`
		SensitiveFilenames  []string `toml:"sensitive_filenames"`
		SensitivePatterns   []string `toml:"sensitive_patterns"`
		BlockedDirectories  []string `toml:"blocked_directories"`
		AllowedExceptions   []string `toml:"allowed_exceptions"`
		HighSeverityTerms   []string `toml:"high_severity_terms"`
		EncodedTraversal    []string `toml:"encoded_traversal"`
	} `toml:"security"`
	Intents []struct {
		Name     string   `toml:"name"`
		Keywords []string `toml:"keywords"`
	} `toml:"intents"`
	Context struct {
		RelevanceKeywords    []string `toml:"relevance_keywords"`
		RecognizedExtensions []string `toml:"recognized_extensions"`
		LogGlobs             []string `toml:"log_globs"`
		MaxLogBytes          int64    `toml:"max_log_bytes"`
		ErrorPatterns        []struct {
			Name    string `toml:"name"`
			Pattern string `toml:"pattern"`
		} `toml:"error_patterns"`
	} `toml:"context"`
	Timeouts struct {
		Git         duration `toml:"git"`
		LogScan     duration `toml:"log_scan"`
		ProjectScan duration `toml:"project_scan"`
		ToolProbe   duration `toml:"tool_probe"`
		SelfTest    duration `toml:"self_test"`
	} `toml:"timeouts"`
	Audit struct {
		MaxBytes int64 `toml:"max_bytes"`
		Keep     int   `toml:"keep"`
	} `toml:"audit"`
}

var (
	// globalConfig is the loaded configuration
	globalConfig *Config
	// configInitialized tracks whether config has been loaded
	configInitialized bool
	// initErr records why Init fell back to embedded defaults
	initErr error
	// configPath is the file Init loaded, empty for embedded defaults
	configPath string
	// profile selects <profile>.toml instead of config.toml
	profile string
)

// GetConfigDir returns the config directory path.
// Uses HOOKGATE_CONFIG env var if set, otherwise ~/.config/hookgate
func GetConfigDir() (string, error) {
	if dir := os.Getenv(constants.EnvConfigDir); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, constants.XDGConfigSubdir, constants.AppName), nil
}

// SetProfile selects a named config profile. Must be called before Init.
func SetProfile(name string) {
	profile = name
}

// GetProfile returns the selected profile name.
func GetProfile() string {
	return profile
}

// ConfigFileName returns the file name for the active profile.
func ConfigFileName() string {
	if profile != "" {
		return profile + ".toml"
	}
	return constants.ConfigFileName
}

// EnsureConfigFiles creates the config directory and writes default config file if it doesn't exist.
func EnsureConfigFiles(configDir string) error {
	if err := os.MkdirAll(configDir, constants.DirMode); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(configDir, constants.ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, defaultConfig, constants.FileMode); err != nil {
			return fmt.Errorf("failed to write %s: %w", constants.ConfigFileName, err)
		}
	}

	return nil
}

// LoadConfig loads the config from TOML data layered over the embedded
// defaults. Includes are not resolved; see LoadConfigWithDir.
func LoadConfig(data []byte) (*Config, error) {
	return LoadConfigWithDir(data, "")
}

// LoadConfigWithDir loads TOML data layered over the embedded defaults and
// resolves include entries relative to dir.
func LoadConfigWithDir(data []byte, dir string) (*Config, error) {
	var fc fileConfig
	if _, err := toml.Decode(string(defaultConfig), &fc); err != nil {
		return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}

	var user fileConfig
	md, err := toml.Decode(string(data), &user)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		logger.Debug("ignoring unknown config keys", "keys", fmt.Sprint(undecoded))
	}
	overlay(&fc, &user, md)

	includes := fc.Include
	fc.Include = nil
	if len(includes) > 0 {
		if dir == "" {
			return nil, fmt.Errorf("include requires a config directory")
		}
		seen := map[string]bool{}
		if err := applyIncludes(&fc, includes, dir, seen, 0); err != nil {
			return nil, err
		}
	}

	return compile(&fc)
}

// overlay copies every key defined in the user file over the defaults.
// Arrays of tables replace the default list as a whole.
func overlay(dst, src *fileConfig, md toml.MetaData) {
	set := func(key string, apply func()) {
		if md.IsDefined(strings.Split(key, ".")...) {
			apply()
		}
	}
	d, s := dst, src

	set("include", func() { d.Include = s.Include })

	set("security.sensitive_extensions", func() { d.Security.SensitiveExtensions = s.Security.SensitiveExtensions })
	set("security.sensitive_filenames", func() { d.Security.SensitiveFilenames = s.Security.SensitiveFilenames })
	set("security.sensitive_patterns", func() { d.Security.SensitivePatterns = s.Security.SensitivePatterns })
	set("security.blocked_directories", func() { d.Security.BlockedDirectories = s.Security.BlockedDirectories })
	set("security.allowed_exceptions", func() { d.Security.AllowedExceptions = s.Security.AllowedExceptions })
	set("security.high_severity_terms", func() { d.Security.HighSeverityTerms = s.Security.HighSeverityTerms })
	set("security.encoded_traversal", func() { d.Security.EncodedTraversal = s.Security.EncodedTraversal })

	set("intents", func() { d.Intents = s.Intents })

	set("context.relevance_keywords", func() { d.Context.RelevanceKeywords = s.Context.RelevanceKeywords })
	set("context.recognized_extensions", func() { d.Context.RecognizedExtensions = s.Context.RecognizedExtensions })
	set("context.log_globs", func() { d.Context.LogGlobs = s.Context.LogGlobs })
	set("context.max_log_bytes", func() { d.Context.MaxLogBytes = s.Context.MaxLogBytes })
	set("context.error_patterns", func() { d.Context.ErrorPatterns = s.Context.ErrorPatterns })

	set("timeouts.git", func() { d.Timeouts.Git = s.Timeouts.Git })
	set("timeouts.log_scan", func() { d.Timeouts.LogScan = s.Timeouts.LogScan })
	set("timeouts.project_scan", func() { d.Timeouts.ProjectScan = s.Timeouts.ProjectScan })
	set("timeouts.tool_probe", func() { d.Timeouts.ToolProbe = s.Timeouts.ToolProbe })
	set("timeouts.self_test", func() { d.Timeouts.SelfTest = s.Timeouts.SelfTest })

	set("audit.max_bytes", func() { d.Audit.MaxBytes = s.Audit.MaxBytes })
	set("audit.keep", func() { d.Audit.Keep = s.Audit.Keep })
}

// applyIncludes appends the list entries of every included file to fc.
func applyIncludes(fc *fileConfig, includes []string, dir string, seen map[string]bool, depth int) error {
	if depth >= maxIncludeDepth {
		return fmt.Errorf("include depth exceeds %d", maxIncludeDepth)
	}
	for _, inc := range includes {
		path := inc
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, inc)
		}
		path = filepath.Clean(path)
		if seen[path] {
			return fmt.Errorf("circular include: %s", inc)
		}
		seen[path] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read include %s: %w", inc, err)
		}
		var child fileConfig
		if _, err := toml.Decode(string(data), &child); err != nil {
			return fmt.Errorf("failed to parse include %s: %w", inc, err)
		}
		mergeLists(fc, &child)
		if len(child.Include) > 0 {
			if err := applyIncludes(fc, child.Include, filepath.Dir(path), seen, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeLists appends the list-valued settings of src to dst.
func mergeLists(dst, src *fileConfig) {
	s, d := &src.Security, &dst.Security
	d.SensitiveExtensions = append(d.SensitiveExtensions, s.SensitiveExtensions...)
	d.SensitiveFilenames = append(d.SensitiveFilenames, s.SensitiveFilenames...)
	d.SensitivePatterns = append(d.SensitivePatterns, s.SensitivePatterns...)
	d.BlockedDirectories = append(d.BlockedDirectories, s.BlockedDirectories...)
	d.AllowedExceptions = append(d.AllowedExceptions, s.AllowedExceptions...)
	d.HighSeverityTerms = append(d.HighSeverityTerms, s.HighSeverityTerms...)
	d.EncodedTraversal = append(d.EncodedTraversal, s.EncodedTraversal...)

	for _, in := range src.Intents {
		merged := false
		for i := range dst.Intents {
			if dst.Intents[i].Name == in.Name {
				dst.Intents[i].Keywords = append(dst.Intents[i].Keywords, in.Keywords...)
				merged = true
				break
			}
		}
		if !merged {
			dst.Intents = append(dst.Intents, in)
		}
	}

	dst.Context.RelevanceKeywords = append(dst.Context.RelevanceKeywords, src.Context.RelevanceKeywords...)
	dst.Context.RecognizedExtensions = append(dst.Context.RecognizedExtensions, src.Context.RecognizedExtensions...)
	dst.Context.LogGlobs = append(dst.Context.LogGlobs, src.Context.LogGlobs...)
	dst.Context.ErrorPatterns = append(dst.Context.ErrorPatterns, src.Context.ErrorPatterns...)
}

// compile turns the decoded file layout into a Config with compiled patterns.
func compile(fc *fileConfig) (*Config, error) {
	cfg := &Config{}

	sec := fc.Security
	cfg.Security = Security{
		SensitiveExtensions: lowerAll(sec.SensitiveExtensions),
		SensitiveFilenames:  lowerAll(sec.SensitiveFilenames),
		BlockedDirectories:  lowerAll(sec.BlockedDirectories),
		AllowedExceptions:   lowerAll(sec.AllowedExceptions),
		HighSeverityTerms:   lowerAll(sec.HighSeverityTerms),
		EncodedTraversal:    lowerAll(sec.EncodedTraversal),
	}
	for _, expr := range sec.SensitivePatterns {
		p, err := patterns.Compile(expr, expr)
		if err != nil {
			return nil, fmt.Errorf("invalid sensitive pattern %q: %w", expr, err)
		}
		p.Type = "path"
		cfg.Security.SensitivePatterns = append(cfg.Security.SensitivePatterns, p)
	}

	for _, in := range fc.Intents {
		if in.Name == "" {
			continue
		}
		p, err := patterns.CompileKeywords(in.Name, in.Keywords)
		if err != nil {
			return nil, fmt.Errorf("invalid keywords for intent %q: %w", in.Name, err)
		}
		cfg.Intents = append(cfg.Intents, Intent{Name: in.Name, Keywords: in.Keywords, Pattern: p})
	}

	relevance, err := patterns.CompileKeywords("relevance", fc.Context.RelevanceKeywords)
	if err != nil {
		return nil, fmt.Errorf("invalid relevance keywords: %w", err)
	}
	cfg.Context = Context{
		Relevance:            relevance,
		RecognizedExtensions: lowerAll(fc.Context.RecognizedExtensions),
		LogGlobs:             fc.Context.LogGlobs,
		MaxLogBytes:          fc.Context.MaxLogBytes,
	}
	for _, ep := range fc.Context.ErrorPatterns {
		if ep.Pattern == "" {
			continue
		}
		p, err := patterns.Compile(ep.Pattern, ep.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid error pattern %q: %w", ep.Name, err)
		}
		p.Type = "log"
		cfg.Context.ErrorPatterns = append(cfg.Context.ErrorPatterns, p)
	}

	cfg.Timeouts = Timeouts{
		Git:         orDefault(fc.Timeouts.Git.Duration, constants.DefaultGitTimeout),
		LogScan:     orDefault(fc.Timeouts.LogScan.Duration, constants.DefaultLogScanTimeout),
		ProjectScan: orDefault(fc.Timeouts.ProjectScan.Duration, constants.DefaultProjectScanTimeout),
		ToolProbe:   orDefault(fc.Timeouts.ToolProbe.Duration, constants.DefaultToolProbeTimeout),
		SelfTest:    orDefault(fc.Timeouts.SelfTest.Duration, constants.DefaultSelfTestTimeout),
	}
	cfg.Audit = Audit{MaxBytes: fc.Audit.MaxBytes, Keep: fc.Audit.Keep}

	return cfg, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// loadEmbeddedDefaults loads the embedded default config file.
func loadEmbeddedDefaults() *Config {
	cfg, err := LoadConfig(nil)
	if err != nil {
		// The embedded file is part of the binary; failing here is a build bug.
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// Init loads configuration from files, creating defaults if necessary.
// If loading fails, it falls back to embedded defaults.
func Init() error {
	if configInitialized {
		return initErr
	}

	fallback := func(err error) error {
		globalConfig = loadEmbeddedDefaults()
		configInitialized = true
		initErr = err
		return err
	}

	configDir, err := GetConfigDir()
	if err != nil {
		logger.Debug("failed to get config dir, using embedded defaults", "error", err)
		return fallback(err)
	}

	if err := EnsureConfigFiles(configDir); err != nil {
		logger.Debug("failed to ensure config files, using embedded defaults", "error", err)
		return fallback(err)
	}

	path := filepath.Join(configDir, ConfigFileName())
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("failed to read config file, using embedded defaults", "path", path, "error", err)
		return fallback(fmt.Errorf("failed to read %s: %w", ConfigFileName(), err))
	}

	cfg, err := LoadConfigWithDir(data, configDir)
	if err != nil {
		logger.Debug("failed to parse config, using embedded defaults", "path", path, "error", err)
		return fallback(fmt.Errorf("failed to load config: %w", err))
	}

	globalConfig = cfg
	configPath = path
	configInitialized = true
	initErr = nil
	logger.Debug("config loaded successfully",
		"path", path,
		"sensitive_patterns", len(cfg.Security.SensitivePatterns),
		"intents", len(cfg.Intents))
	return nil
}

// Get returns the current configuration.
// If Init has not been called, it initializes with defaults.
func Get() *Config {
	if !configInitialized {
		Init()
	}
	return globalConfig
}

// GetConfigPath returns the path of the loaded config file, or "" when the
// embedded defaults are in use.
func GetConfigPath() string {
	return configPath
}

// InitError returns the error that made Init fall back to defaults, if any.
func InitError() error {
	return initErr
}

// Reset resets the configuration state. Used for testing.
func Reset() {
	configInitialized = false
	globalConfig = nil
	initErr = nil
	configPath = ""
	profile = ""
}

// GetDefaultConfig returns the embedded default configuration.
func GetDefaultConfig() []byte {
	return defaultConfig
}
