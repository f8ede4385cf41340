// Package config provides configuration for the lessons binary.
// Loads from: CLI flags > env vars > .lessons/config.toml > built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Built-in defaults.
const (
	DefaultContentDir  = "content"
	DefaultBasePath    = "/"
	DefaultWebAddr     = "127.0.0.1:4078"
	DefaultDataDir     = ".lessons"
	DefaultDebounceMS  = 500
	DefaultThreshold   = 0.6
	DefaultLogMode     = "dev"
	ConfigDirName      = ".lessons"
	ConfigFileName     = "config.toml"
	DatabaseFileName   = "lessons.db"
	StatsFileName      = "index_stats.json"
	AuditFileName      = "guard_audit.jsonl"
	MaxSearchResults   = 50
	DefaultSearchLimit = 10
)

// Config holds all lessons configuration, loaded from TOML + env + flags.
type Config struct {
	Content ContentConfig `toml:"content"`
	Site    SiteConfig    `toml:"site"`
	Web     WebConfig     `toml:"web"`
	Data    DataConfig    `toml:"data"`
	Watch   WatchConfig   `toml:"watch"`
	Guard   GuardConfig   `toml:"guard"`
	Log     LogConfig     `toml:"log"`

	// projectDir is the directory holding .lessons/, used to resolve
	// relative paths from the config file.
	projectDir string
}

// ContentConfig locates the lesson tree.
type ContentConfig struct {
	Root string `toml:"root"`
}

// SiteConfig controls generated hrefs.
type SiteConfig struct {
	BasePath string `toml:"base_path"`
}

// WebConfig holds HTTP API settings.
type WebConfig struct {
	Addr string `toml:"addr"`
}

// DataConfig locates the SQLite database and stats files.
type DataConfig struct {
	Dir string `toml:"dir"`
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	DebounceMS int `toml:"debounce_ms"`
}

// GuardConfig controls prompt-injection screening of lesson bodies served to
// agents.
type GuardConfig struct {
	Enabled   bool    `toml:"enabled"`
	Threshold float64 `toml:"threshold"` // 0 < threshold <= 1
}

// LogConfig selects the logger encoding.
type LogConfig struct {
	Mode string `toml:"mode"` // "dev" (default), "prod", "quiet"
}

// DefaultConfig returns a Config with all built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Content: ContentConfig{Root: DefaultContentDir},
		Site:    SiteConfig{BasePath: DefaultBasePath},
		Web:     WebConfig{Addr: DefaultWebAddr},
		Data:    DataConfig{Dir: DefaultDataDir},
		Watch:   WatchConfig{DebounceMS: DefaultDebounceMS},
		Guard:   GuardConfig{Enabled: true, Threshold: DefaultThreshold},
		Log:     LogConfig{Mode: DefaultLogMode},
	}
}

// ContentOverride is set by the --content global flag.
var ContentOverride string

// Sentinel errors for consistent messaging across CLI commands.
var (
	// ErrNoContent is returned when the content root does not exist.
	ErrNoContent = errors.New("no content directory found: run 'lessons init' or pass --content")
	// ErrNoDatabase is returned when the search database cannot be opened.
	ErrNoDatabase = errors.New("cannot open lessons database: run 'lessons reindex' to create it")
)

// LoadConfig merges all configuration sources: defaults < TOML file < env vars.
// The --content flag is applied by ContentRoot.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(findConfigFile())
}

// LoadConfigFrom loads configuration from a specific file path, merging with
// defaults and env vars. A missing file yields defaults.
func LoadConfigFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			meta, err := toml.DecodeFile(configPath, cfg)
			if err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
			warnUnknownKeys(meta, configPath)
			cfg.projectDir = filepath.Dir(filepath.Dir(configPath))
		}
	}

	if v := os.Getenv("LESSONS_CONTENT_ROOT"); v != "" {
		cfg.Content.Root = v
	}
	if v := os.Getenv("LESSONS_BASE_PATH"); v != "" {
		cfg.Site.BasePath = v
	}
	if v := os.Getenv("LESSONS_WEB_ADDR"); v != "" {
		cfg.Web.Addr = v
	}
	if v := os.Getenv("LESSONS_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("LESSONS_LOG_MODE"); v != "" {
		cfg.Log.Mode = v
	}

	return cfg, nil
}

// findConfigFile looks for .lessons/config.toml next to the content root,
// then in CWD.
func findConfigFile() string {
	if root := explicitContentRoot(); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			p := ConfigFilePath(filepath.Dir(abs))
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		p := ConfigFilePath(cwd)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// explicitContentRoot resolves the content root from flag or env without
// loading the config file, which itself depends on this path.
func explicitContentRoot() string {
	if ContentOverride != "" {
		return ContentOverride
	}
	return os.Getenv("LESSONS_CONTENT_ROOT")
}

// FindConfigFile returns the path to the active config file, or empty string if none found.
func FindConfigFile() string {
	return findConfigFile()
}

// ConfigFilePath returns where the config file lives for a project directory.
func ConfigFilePath(projectDir string) string {
	return filepath.Join(projectDir, ConfigDirName, ConfigFileName)
}

// GenerateConfig writes a default .lessons/config.toml with comments.
// If contentRoot is non-empty it is recorded in the file.
func GenerateConfig(projectDir, contentRoot string) error {
	configPath := ConfigFilePath(projectDir)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(configPath, []byte(generateTOMLContent(contentRoot)), 0o600)
}

func generateTOMLContent(contentRoot string) string {
	var b strings.Builder
	b.WriteString("# lessons configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Priority: CLI flags > environment variables > this file > built-in defaults\n")
	b.WriteString("# Environment variables: LESSONS_CONTENT_ROOT, LESSONS_BASE_PATH,\n")
	b.WriteString("#   LESSONS_WEB_ADDR, LESSONS_DATA_DIR, LESSONS_LOG_MODE\n\n")

	b.WriteString("[content]\n")
	if contentRoot == "" {
		contentRoot = DefaultContentDir
	}
	b.WriteString(fmt.Sprintf("root = %q  # relative to the directory holding .lessons/\n\n", contentRoot))

	b.WriteString("[site]\n")
	b.WriteString(fmt.Sprintf("base_path = %q\n\n", DefaultBasePath))

	b.WriteString("[web]\n")
	b.WriteString(fmt.Sprintf("addr = %q  # must be a loopback address\n\n", DefaultWebAddr))

	b.WriteString("[data]\n")
	b.WriteString(fmt.Sprintf("dir = %q\n\n", DefaultDataDir))

	b.WriteString("[watch]\n")
	b.WriteString(fmt.Sprintf("debounce_ms = %d\n\n", DefaultDebounceMS))

	b.WriteString("[guard]\n")
	b.WriteString("# Screen lesson bodies for prompt injection before serving them over MCP.\n")
	b.WriteString("enabled = true\n")
	b.WriteString(fmt.Sprintf("threshold = %.1f\n\n", DefaultThreshold))

	b.WriteString("[log]\n")
	b.WriteString("# \"dev\" (console), \"prod\" (JSON), or \"quiet\" (warnings only)\n")
	b.WriteString(fmt.Sprintf("mode = %q\n", DefaultLogMode))

	return b.String()
}

// ShowConfig returns the current effective configuration as TOML.
func ShowConfig() string {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Sprintf("# Error loading config: %v\n", err)
	}
	cfg.Content.Root = ContentRoot()
	cfg.Data.Dir = DataDir()

	var b strings.Builder
	b.WriteString("# Effective lessons configuration (merged from all sources)\n")
	if p := findConfigFile(); p != "" {
		b.WriteString(fmt.Sprintf("# Config file: %s\n", p))
	}
	b.WriteString("\n")
	enc := toml.NewEncoder(&b)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Sprintf("# Error encoding config: %v\n", err)
	}
	return b.String()
}

// loadConfigSafe loads config without failing. Returns defaults on error.
func loadConfigSafe() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// ConfigWarning returns any config file parse error, or empty string if OK.
func ConfigWarning() string {
	if _, err := LoadConfig(); err != nil {
		return err.Error()
	}
	return ""
}

// configSuggestions maps common wrong keys to the correct TOML key name.
var configSuggestions = map[string]string{
	"path":        "root",
	"dir_root":    "root",
	"content_dir": "root",
	"basepath":    "base_path",
	"base-path":   "base_path",
	"base_url":    "base_path",
	"listen":      "addr",
	"address":     "addr",
	"port":        "addr",
	"data_dir":    "dir",
	"debounce":    "debounce_ms",
	"delay_ms":    "debounce_ms",
	"enable":      "enabled",
	"level":       "mode",
}

// warnUnknownKeys prints warnings for unrecognized config keys.
func warnUnknownKeys(meta toml.MetaData, configPath string) {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return
	}

	fname := filepath.Base(configPath)
	for _, key := range undecoded {
		keyStr := key.String()
		lastPart := key[len(key)-1]

		if suggestion, ok := configSuggestions[lastPart]; ok {
			fmt.Fprintf(os.Stderr, "lessons: WARNING: unknown key %q in %s, did you mean %q?\n",
				keyStr, fname, suggestion)
		} else {
			fmt.Fprintf(os.Stderr, "lessons: WARNING: unknown key %q in %s (will be ignored)\n",
				keyStr, fname)
		}
	}
}

// ProjectDir returns the directory that holds .lessons/. It is the parent of
// the config file when one exists, otherwise the parent of an explicit
// content root, otherwise CWD.
func ProjectDir() string {
	if cfg := loadConfigSafe(); cfg.projectDir != "" {
		return cfg.projectDir
	}
	if root := explicitContentRoot(); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// ContentRoot returns the lesson tree root. It does not check existence;
// use RequireContentRoot for that.
func ContentRoot() string {
	var path string
	if ContentOverride != "" {
		path = ContentOverride
	} else {
		path = loadConfigSafe().Content.Root
		if path == "" {
			path = DefaultContentDir
		}
		if !filepath.IsAbs(path) && os.Getenv("LESSONS_CONTENT_ROOT") == "" {
			path = filepath.Join(ProjectDir(), path)
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return validateContentRoot(path)
}

// RequireContentRoot returns the content root or ErrNoContent when it is
// missing or not a directory.
func RequireContentRoot() (string, error) {
	root := ContentRoot()
	if root == "" {
		return "", ErrNoContent
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", ErrNoContent
	}
	return root, nil
}

// validateContentRoot rejects roots that are too broad (e.g., /, /home) and
// resolves symlinks so a link cannot point the loader at them.
func validateContentRoot(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	dangerous := []string{"/", "/home", "/Users", "/tmp", "/var", "/etc", "/opt"}
	if runtime.GOOS == "windows" && len(abs) >= 3 {
		driveRoot := abs[:3]
		dangerous = append(dangerous, driveRoot, filepath.Join(driveRoot, "Users"), filepath.Join(driveRoot, "Windows"))
	}
	for _, d := range dangerous {
		if abs == d {
			fmt.Fprintf(os.Stderr, "WARNING: content root %q is too broad, ignoring.\n", abs)
			return ""
		}
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// may not exist yet (e.g. during init)
		return path
	}
	for _, d := range dangerous {
		if resolved == d {
			fmt.Fprintf(os.Stderr, "WARNING: content root %q resolves to %q which is too broad, ignoring.\n", abs, resolved)
			return ""
		}
		if resolvedDangerous, err := filepath.EvalSymlinks(d); err == nil && resolved == resolvedDangerous {
			fmt.Fprintf(os.Stderr, "WARNING: content root %q resolves to %q which is too broad, ignoring.\n", abs, resolved)
			return ""
		}
	}
	return path
}

// DataDir returns the directory for the database, stats, and audit log.
func DataDir() string {
	dir := loadConfigSafe().Data.Dir
	if dir == "" {
		dir = DefaultDataDir
	}
	if !filepath.IsAbs(dir) {
		if os.Getenv("LESSONS_DATA_DIR") != "" {
			if abs, err := filepath.Abs(dir); err == nil {
				return abs
			}
		}
		dir = filepath.Join(ProjectDir(), dir)
	}
	return dir
}

// DBPath returns the path to the SQLite database file.
func DBPath() string {
	return filepath.Join(DataDir(), DatabaseFileName)
}

// BasePath returns the href prefix for sidebar and lesson links.
func BasePath() string {
	if bp := loadConfigSafe().Site.BasePath; bp != "" {
		return bp
	}
	return DefaultBasePath
}

// WebAddr returns the HTTP listen address.
func WebAddr() string {
	if addr := loadConfigSafe().Web.Addr; addr != "" {
		return addr
	}
	return DefaultWebAddr
}

// WatchDebounce returns the watcher debounce window. Non-positive values
// fall back to the default.
func WatchDebounce() time.Duration {
	ms := loadConfigSafe().Watch.DebounceMS
	if ms <= 0 {
		ms = DefaultDebounceMS
	}
	return time.Duration(ms) * time.Millisecond
}

// GuardEnabled reports whether lesson bodies are screened before serving.
func GuardEnabled() bool {
	return loadConfigSafe().Guard.Enabled
}

// GuardThreshold returns the injection risk threshold, falling back to the
// default when the configured value is outside (0, 1].
func GuardThreshold() float64 {
	t := loadConfigSafe().Guard.Threshold
	if t <= 0 || t > 1 {
		return DefaultThreshold
	}
	return t
}

// LogMode returns the configured logger mode.
func LogMode() string {
	if m := loadConfigSafe().Log.Mode; m != "" {
		return m
	}
	return DefaultLogMode
}
