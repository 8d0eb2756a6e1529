package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Static    StaticConfig    `mapstructure:"static"`
	Converter ConverterConfig `mapstructure:"converter"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Security  SecurityConfig  `mapstructure:"security"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StaticConfig holds the static pipeline configuration
type StaticConfig struct {
	// Root is the directory tree being served. It is canonicalized at
	// load time and never changes afterwards.
	Root          string `mapstructure:"root" validate:"required"`
	EnableListing bool   `mapstructure:"enable_listing"`
	// ChunkSize bounds memory while streaming large static files.
	ChunkSize int `mapstructure:"chunk_size" validate:"min=1024"`
}

// ConverterConfig locates the external MML conversion unit
type ConverterConfig struct {
	// PluginPath is the shared object loaded for in-process conversion.
	PluginPath string `mapstructure:"plugin_path" validate:"required"`
	// Command is the standalone executable used as the last-resort
	// subprocess fallback.
	Command string `mapstructure:"command" validate:"required"`
	// Timeout bounds each subprocess attempt.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1ms"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	// Filename receives log output when Output is "file".
	Filename string `mapstructure:"filename"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := canonicalizeRoot(&cfg.Static); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// canonicalizeRoot resolves the served root to an absolute path and
// verifies it exists and is a directory. A missing root is an
// unrecoverable startup fault.
func canonicalizeRoot(cfg *StaticConfig) error {
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return fmt.Errorf("cannot resolve static root %q: %w", cfg.Root, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("static root %q is not usable: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("static root %q is not a directory", abs)
	}

	cfg.Root = abs
	return nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "Parrot")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Static pipeline defaults
	viper.SetDefault("static.root", ".")
	viper.SetDefault("static.enable_listing", false)
	viper.SetDefault("static.chunk_size", 64*1024)

	// Converter defaults: the unit lives next to the served tree by
	// convention, mirroring where authors drop their converter.
	viper.SetDefault("converter.plugin_path", "mml_converter.so")
	viper.SetDefault("converter.command", "./mml_converter")
	viper.SetDefault("converter.timeout", "10s")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")

	// Security defaults
	viper.SetDefault("security.cors_allowed_origins", "*")
	viper.SetDefault("security.rate_limit_requests", 100)
	viper.SetDefault("security.rate_limit_window", "1m")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
}

func bindEnvVars() {
	// App
	viper.BindEnv("app.name", "APP_NAME")
	viper.BindEnv("app.version", "APP_VERSION")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("app.debug", "APP_DEBUG")

	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")

	// Static pipeline
	viper.BindEnv("static.root", "STATIC_ROOT")
	viper.BindEnv("static.enable_listing", "STATIC_ENABLE_LISTING")
	viper.BindEnv("static.chunk_size", "STATIC_CHUNK_SIZE")

	// Converter
	viper.BindEnv("converter.plugin_path", "CONVERTER_PLUGIN_PATH")
	viper.BindEnv("converter.command", "CONVERTER_COMMAND")
	viper.BindEnv("converter.timeout", "CONVERTER_TIMEOUT")

	// Logger
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.format", "LOG_FORMAT")
	viper.BindEnv("logger.output", "LOG_OUTPUT")
	viper.BindEnv("logger.filename", "LOG_FILENAME")

	// Security
	viper.BindEnv("security.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")

	// Metrics
	viper.BindEnv("metrics.enabled", "ENABLE_METRICS")
}

// Address returns the host:port the server listens on
func (cfg *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}

// IsProduction returns true if the environment is production
func (cfg *AppConfig) IsProduction() bool {
	return cfg.Environment == "production"
}
