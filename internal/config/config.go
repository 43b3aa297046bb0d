// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAGEPILOT_ENGINE_MAX_DEPTH.
const EnvPrefix = "PAGEPILOT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Engine() EngineConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Engine Setters
	SetEngineMaxDepth(int)
	SetEngineDebugHighlight(bool)
	SetEngineWaitTimeout(time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }

func (c *Config) SetBrowserHeadless(b bool)             { c.BrowserCfg.Headless = b }
func (c *Config) SetEngineMaxDepth(d int)               { c.EngineCfg.MaxDepth = d }
func (c *Config) SetEngineDebugHighlight(b bool)        { c.EngineCfg.DebugHighlight = b }
func (c *Config) SetEngineWaitTimeout(d time.Duration) { c.EngineCfg.WaitTimeout = d }

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color of each level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig configures the Chrome instance behind http(s) pages.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableGPU        bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// EngineConfig tunes indexing, resolution and execution.
type EngineConfig struct {
	MaxDepth         int           `mapstructure:"max_depth" yaml:"max_depth"`
	FrameSearchDepth int           `mapstructure:"frame_search_depth" yaml:"frame_search_depth"`
	TextLimit        int           `mapstructure:"text_limit" yaml:"text_limit"`
	DebugHighlight   bool          `mapstructure:"debug_highlight" yaml:"debug_highlight"`
	OverlayTTL       time.Duration `mapstructure:"overlay_ttl" yaml:"overlay_ttl"`

	// WaitTimeout bounds how long an action waits for its target to appear.
	// Negative disables waiting.
	WaitTimeout      time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	WaitPollInterval time.Duration `mapstructure:"wait_poll_interval" yaml:"wait_poll_interval"`
	MutationRate     float64       `mapstructure:"mutation_rate" yaml:"mutation_rate"`
	ScrollBeforeWait bool          `mapstructure:"scroll_before_wait" yaml:"scroll_before_wait"`

	ScrollOffset   float64       `mapstructure:"scroll_offset" yaml:"scroll_offset"`
	DefaultKey     string        `mapstructure:"default_key" yaml:"default_key"`
	WaitDefault    time.Duration `mapstructure:"wait_default" yaml:"wait_default"`
	DispatchChange bool          `mapstructure:"dispatch_change" yaml:"dispatch_change"`
	GranularClick  bool          `mapstructure:"granular_click" yaml:"granular_click"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "30s")

	// -- Engine --
	v.SetDefault("engine.max_depth", 3)
	v.SetDefault("engine.frame_search_depth", 3)
	v.SetDefault("engine.text_limit", 100)
	v.SetDefault("engine.debug_highlight", false)
	v.SetDefault("engine.overlay_ttl", "2500ms")
	v.SetDefault("engine.wait_timeout", "5s")
	v.SetDefault("engine.wait_poll_interval", "100ms")
	v.SetDefault("engine.mutation_rate", 20.0)
	v.SetDefault("engine.scroll_before_wait", false)
	v.SetDefault("engine.scroll_offset", 200.0)
	v.SetDefault("engine.default_key", "Enter")
	v.SetDefault("engine.wait_default", "1s")
	v.SetDefault("engine.dispatch_change", true)
	v.SetDefault("engine.granular_click", true)
}

// BindEnv makes every key overridable from PAGEPILOT_* environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadFile loads cfgFile into v. An empty cfgFile looks for pagepilot.yaml in
// the working directory and in ~/.pagepilot; a missing default file is not an
// error.
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("expand config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home + "/.pagepilot")
		}
		v.SetConfigName("pagepilot")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LoggerCfg.LogFile != "" {
		path, err := homedir.Expand(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("expand logger.log_file: %w", err)
		}
		cfg.LoggerCfg.LogFile = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.EngineCfg.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		return fmt.Errorf("browser.viewport_width and browser.viewport_height must be positive")
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the engine settings.
func (e *EngineConfig) Validate() error {
	if e.MaxDepth < 0 {
		return fmt.Errorf("engine.max_depth must not be negative")
	}
	if e.FrameSearchDepth < 0 {
		return fmt.Errorf("engine.frame_search_depth must not be negative")
	}
	if e.WaitPollInterval <= 0 {
		return fmt.Errorf("engine.wait_poll_interval must be a positive duration")
	}
	if e.MutationRate <= 0 {
		return fmt.Errorf("engine.mutation_rate must be positive")
	}
	if e.WaitDefault < 0 {
		return fmt.Errorf("engine.wait_default must not be negative")
	}
	return nil
}
