package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Monitor.MaxPostsPerKeyword != 20 {
		t.Errorf("Expected default max posts per keyword to be 20, got %d", config.Monitor.MaxPostsPerKeyword)
	}

	if config.Window.Preset != Window1Week {
		t.Errorf("Expected default window preset to be %s, got %s", Window1Week, config.Window.Preset)
	}

	if !config.Browser.Headless {
		t.Error("Expected default browser mode to be headless")
	}

	if config.Accounts.CooldownHours != 1.0 {
		t.Errorf("Expected default cooldown hours to be 1, got %v", config.Accounts.CooldownHours)
	}

	if config.Output.ResultsDir != "./monitor_results" {
		t.Errorf("Expected default results directory to be ./monitor_results, got %s", config.Output.ResultsDir)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("XHSMONITOR_KEYWORDS", "咖啡, 露营")
	os.Setenv("XHSMONITOR_MAX_POSTS", "50")
	os.Setenv("XHSMONITOR_WINDOW", "3_days")
	os.Setenv("XHSMONITOR_HEADLESS", "false")
	os.Setenv("XHSMONITOR_COOLDOWN_HOURS", "4.5")
	os.Setenv("XHSMONITOR_RESULTS_DIR", "/tmp/test-results")
	os.Setenv("XHSMONITOR_LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("XHSMONITOR_KEYWORDS")
		os.Unsetenv("XHSMONITOR_MAX_POSTS")
		os.Unsetenv("XHSMONITOR_WINDOW")
		os.Unsetenv("XHSMONITOR_HEADLESS")
		os.Unsetenv("XHSMONITOR_COOLDOWN_HOURS")
		os.Unsetenv("XHSMONITOR_RESULTS_DIR")
		os.Unsetenv("XHSMONITOR_LOG_LEVEL")
	}()

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if len(config.Monitor.Keywords) != 2 || config.Monitor.Keywords[0] != "咖啡" || config.Monitor.Keywords[1] != "露营" {
		t.Errorf("Expected keywords [咖啡 露营], got %v", config.Monitor.Keywords)
	}

	if config.Monitor.MaxPostsPerKeyword != 50 {
		t.Errorf("Expected max posts to be 50, got %d", config.Monitor.MaxPostsPerKeyword)
	}

	if config.Window.Preset != Window3Days {
		t.Errorf("Expected window preset to be %s, got %s", Window3Days, config.Window.Preset)
	}

	if config.Browser.Headless {
		t.Error("Expected headless to be disabled")
	}

	if config.Accounts.CooldownHours != 4.5 {
		t.Errorf("Expected cooldown hours to be 4.5, got %v", config.Accounts.CooldownHours)
	}

	if config.Output.ResultsDir != "/tmp/test-results" {
		t.Errorf("Expected results directory to be /tmp/test-results, got %s", config.Output.ResultsDir)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "valid defaults",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "zero max posts",
			mutate:    func(c *Config) { c.Monitor.MaxPostsPerKeyword = 0 },
			wantError: true,
		},
		{
			name:      "unknown window preset",
			mutate:    func(c *Config) { c.Window.Preset = "fortnight" },
			wantError: true,
		},
		{
			name: "custom window without days",
			mutate: func(c *Config) {
				c.Window.Preset = WindowCustom
				c.Window.CustomDays = 0
			},
			wantError: true,
		},
		{
			name: "custom window with days",
			mutate: func(c *Config) {
				c.Window.Preset = WindowCustom
				c.Window.CustomDays = 10
			},
			wantError: false,
		},
		{
			name:      "negative cooldown",
			mutate:    func(c *Config) { c.Accounts.CooldownHours = -1 },
			wantError: true,
		},
		{
			name:      "missing store file",
			mutate:    func(c *Config) { c.Accounts.StoreFile = "" },
			wantError: true,
		},
		{
			name:      "missing results dir",
			mutate:    func(c *Config) { c.Output.ResultsDir = "" },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: true,
		},
		{
			name:      "zero navigation timeout",
			mutate:    func(c *Config) { c.Browser.NavigationTimeout = 0 },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected no validation error, got %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
monitor:
  keywords: ["测试"]
  max_posts_per_keyword: 5
window:
  preset: custom
  custom_days: 14
browser:
  headless: false
  navigation_timeout: 45s
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if len(config.Monitor.Keywords) != 1 || config.Monitor.Keywords[0] != "测试" {
		t.Errorf("Expected keywords [测试], got %v", config.Monitor.Keywords)
	}
	if config.Monitor.MaxPostsPerKeyword != 5 {
		t.Errorf("Expected max posts to be 5, got %d", config.Monitor.MaxPostsPerKeyword)
	}
	if config.Window.Preset != WindowCustom || config.Window.CustomDays != 14 {
		t.Errorf("Expected custom 14-day window, got %s/%d", config.Window.Preset, config.Window.CustomDays)
	}
	if config.Browser.NavigationTimeout != 45*time.Second {
		t.Errorf("Expected 45s navigation timeout, got %v", config.Browser.NavigationTimeout)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", config.Logging.Level)
	}

	// Defaults untouched by the file survive
	if config.Monitor.MaxCommentsPerPost != 10 {
		t.Errorf("Expected default max comments to survive, got %d", config.Monitor.MaxCommentsPerPost)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved", "config.yaml")

	config := DefaultConfig()
	config.Monitor.Keywords = []string{"滑雪"}
	config.Window.Preset = Window1Month

	if err := config.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected config file mode 0600, got %v", info.Mode().Perm())
	}

	reloaded := DefaultConfig()
	if err := reloaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if len(reloaded.Monitor.Keywords) != 1 || reloaded.Monitor.Keywords[0] != "滑雪" {
		t.Errorf("Expected keywords [滑雪], got %v", reloaded.Monitor.Keywords)
	}
	if reloaded.Window.Preset != Window1Month {
		t.Errorf("Expected window preset %s, got %s", Window1Month, reloaded.Window.Preset)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"keywords":  []string{"相机"},
		"max-posts": 7,
		"window":    Window1Day,
		"headless":  false,
		"log-level": "error",
	})

	if len(config.Monitor.Keywords) != 1 || config.Monitor.Keywords[0] != "相机" {
		t.Errorf("Expected keywords [相机], got %v", config.Monitor.Keywords)
	}
	if config.Monitor.MaxPostsPerKeyword != 7 {
		t.Errorf("Expected max posts to be 7, got %d", config.Monitor.MaxPostsPerKeyword)
	}
	if config.Window.Preset != Window1Day {
		t.Errorf("Expected window preset %s, got %s", Window1Day, config.Window.Preset)
	}
	if config.Browser.Headless {
		t.Error("Expected headless to be disabled")
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level error, got %s", config.Logging.Level)
	}
}
