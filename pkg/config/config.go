package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the monitor
type Config struct {
	// Monitoring run settings
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Time window settings
	Window WindowConfig `yaml:"window" json:"window"`

	// Browser settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Account store settings
	Accounts AccountsConfig `yaml:"accounts" json:"accounts"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MonitorConfig holds settings for a monitoring run
type MonitorConfig struct {
	Keywords           []string `yaml:"keywords" json:"keywords"`
	MaxPostsPerKeyword int      `yaml:"max_posts_per_keyword" json:"max_posts_per_keyword"`
	MaxCommentsPerPost int      `yaml:"max_comments_per_post" json:"max_comments_per_post"`
	ExtractComments    bool     `yaml:"extract_comments" json:"extract_comments"`
}

// WindowConfig selects the time window posts must fall into
type WindowConfig struct {
	Preset     string `yaml:"preset" json:"preset"`
	CustomDays int    `yaml:"custom_days" json:"custom_days"`
}

// BrowserConfig holds browser session settings
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	ExecPath          string        `yaml:"exec_path" json:"exec_path"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	ChallengeWait     time.Duration `yaml:"challenge_wait" json:"challenge_wait"`
}

// AccountsConfig holds account store locations and rotation settings
type AccountsConfig struct {
	StoreFile     string  `yaml:"store_file" json:"store_file"`
	SaltFile      string  `yaml:"salt_file" json:"salt_file"`
	SessionDir    string  `yaml:"session_dir" json:"session_dir"`
	CooldownHours float64 `yaml:"cooldown_hours" json:"cooldown_hours"`
}

// OutputConfig holds result output settings
type OutputConfig struct {
	ResultsDir string `yaml:"results_dir" json:"results_dir"`
	ExportCSV  bool   `yaml:"export_csv" json:"export_csv"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Window presets accepted by WindowConfig.Preset.
const (
	Window1Day   = "1_day"
	Window3Days  = "3_days"
	Window1Week  = "1_week"
	Window2Weeks = "2_weeks"
	Window1Month = "1_month"
	WindowCustom = "custom"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			MaxPostsPerKeyword: 20,
			MaxCommentsPerPost: 10,
			ExtractComments:    true,
		},
		Window: WindowConfig{
			Preset: Window1Week,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			ChallengeWait:     120 * time.Second,
		},
		Accounts: AccountsConfig{
			StoreFile:     "./data/accounts.yaml",
			SaltFile:      "./data/vault.salt",
			SessionDir:    "./data/sessions",
			CooldownHours: 1.0,
		},
		Output: OutputConfig{
			ResultsDir: "./monitor_results",
			ExportCSV:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if keywords := os.Getenv("XHSMONITOR_KEYWORDS"); keywords != "" {
		c.Monitor.Keywords = splitList(keywords)
	}
	if maxPosts := os.Getenv("XHSMONITOR_MAX_POSTS"); maxPosts != "" {
		if val, err := strconv.Atoi(maxPosts); err == nil && val > 0 {
			c.Monitor.MaxPostsPerKeyword = val
		}
	}
	if maxComments := os.Getenv("XHSMONITOR_MAX_COMMENTS"); maxComments != "" {
		if val, err := strconv.Atoi(maxComments); err == nil && val >= 0 {
			c.Monitor.MaxCommentsPerPost = val
		}
	}
	if comments := os.Getenv("XHSMONITOR_EXTRACT_COMMENTS"); comments != "" {
		c.Monitor.ExtractComments = strings.ToLower(comments) == "true"
	}

	if preset := os.Getenv("XHSMONITOR_WINDOW"); preset != "" {
		c.Window.Preset = preset
	}
	if days := os.Getenv("XHSMONITOR_WINDOW_DAYS"); days != "" {
		if val, err := strconv.Atoi(days); err == nil && val > 0 {
			c.Window.CustomDays = val
		}
	}

	if headless := os.Getenv("XHSMONITOR_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) != "false"
	}
	if execPath := os.Getenv("XHSMONITOR_BROWSER_PATH"); execPath != "" {
		c.Browser.ExecPath = execPath
	}

	if storeFile := os.Getenv("XHSMONITOR_ACCOUNTS_FILE"); storeFile != "" {
		c.Accounts.StoreFile = storeFile
	}
	if cooldown := os.Getenv("XHSMONITOR_COOLDOWN_HOURS"); cooldown != "" {
		if val, err := strconv.ParseFloat(cooldown, 64); err == nil && val >= 0 {
			c.Accounts.CooldownHours = val
		}
	}

	if resultsDir := os.Getenv("XHSMONITOR_RESULTS_DIR"); resultsDir != "" {
		c.Output.ResultsDir = resultsDir
	}

	if logLevel := os.Getenv("XHSMONITOR_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// splitList splits a comma-separated env value, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".xhsmonitor.yaml",
		".xhsmonitor.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "xhsmonitor", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "xhsmonitor", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".xhsmonitor.yaml"),
		filepath.Join(os.Getenv("HOME"), ".xhsmonitor.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// ValidPreset reports whether the given window preset name is known.
func ValidPreset(preset string) bool {
	switch preset {
	case Window1Day, Window3Days, Window1Week, Window2Weeks, Window1Month, WindowCustom:
		return true
	}
	return false
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Monitor.MaxPostsPerKeyword <= 0 {
		errs = append(errs, errors.New("max posts per keyword must be positive"))
	}
	if c.Monitor.MaxCommentsPerPost < 0 {
		errs = append(errs, errors.New("max comments per post cannot be negative"))
	}

	if !ValidPreset(c.Window.Preset) {
		errs = append(errs, fmt.Errorf("unknown window preset: %s", c.Window.Preset))
	}
	if c.Window.Preset == WindowCustom && c.Window.CustomDays <= 0 {
		errs = append(errs, errors.New("custom window requires a positive day count"))
	}

	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Browser.ChallengeWait <= 0 {
		errs = append(errs, errors.New("challenge wait must be positive"))
	}

	if c.Accounts.StoreFile == "" {
		errs = append(errs, errors.New("account store file is required"))
	}
	if c.Accounts.SaltFile == "" {
		errs = append(errs, errors.New("vault salt file is required"))
	}
	if c.Accounts.SessionDir == "" {
		errs = append(errs, errors.New("session directory is required"))
	}
	if c.Accounts.CooldownHours < 0 {
		errs = append(errs, errors.New("cooldown hours cannot be negative"))
	}

	if c.Output.ResultsDir == "" {
		errs = append(errs, errors.New("results directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if keywords, ok := flags["keywords"].([]string); ok && len(keywords) > 0 {
		c.Monitor.Keywords = keywords
	}
	if maxPosts, ok := flags["max-posts"].(int); ok && maxPosts > 0 {
		c.Monitor.MaxPostsPerKeyword = maxPosts
	}
	if preset, ok := flags["window"].(string); ok && preset != "" {
		c.Window.Preset = preset
	}
	if days, ok := flags["window-days"].(int); ok && days > 0 {
		c.Window.CustomDays = days
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if resultsDir, ok := flags["output"].(string); ok && resultsDir != "" {
		c.Output.ResultsDir = resultsDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xhsmonitor.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
