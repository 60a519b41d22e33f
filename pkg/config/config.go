// Package config provides configuration loading and validation for the PrivSketch service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort      = errors.New("invalid server port")
	ErrInvalidEpsilon   = errors.New("epsilon must be positive")
	ErrInvalidNumMaps   = errors.New("sketch num_maps must be positive")
	ErrInvalidLength    = errors.New("sketch length must be positive")
	ErrInvalidPerturb   = errors.New("sketch perturbation probability must be in [0, 1)")
	ErrInvalidDPVariant = errors.New("privacy variant must be \"rrt\" or \"grr\"")
	ErrInvalidBackend   = errors.New("sketch backend must be \"pcsa\" or \"hll\"")
	ErrInvalidUniverse  = errors.New("universe must contain at least two categories")
)

// Default configuration values.
const (
	defaultPort     = 8080
	defaultHost     = "0.0.0.0"
	defaultNumMaps  = 256
	defaultLength   = 32
	defaultPerturbR = 0.0
	defaultEpsilon  = 1.0
	maxPort         = 65535
)

// Config holds all configuration for the PrivSketch service.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sketch  SketchConfig  `mapstructure:"sketch"`
	Privacy PrivacyConfig `mapstructure:"privacy"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds configuration for the optional HTTP ingest/metrics endpoint.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
	Enabled      bool          `mapstructure:"enabled"`
}

// SketchConfig holds the PCSA bitmap parameters.
type SketchConfig struct {
	Backend      string  `mapstructure:"backend"`
	NumMaps      int     `mapstructure:"num_maps"`
	Length       int     `mapstructure:"length"`
	Perturbation float64 `mapstructure:"perturbation"`
	HLLPrecision uint8   `mapstructure:"hll_precision"`
}

// PrivacyConfig holds the local differential privacy parameters.
type PrivacyConfig struct {
	Epsilon float64  `mapstructure:"epsilon"`
	Variant string   `mapstructure:"variant"`
	Domain  []string `mapstructure:"domain"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/privsketch")
	}

	viperCfg.SetEnvPrefix("PRIVSKETCH")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.enabled", false)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")

	viperCfg.SetDefault("sketch.backend", "pcsa")
	viperCfg.SetDefault("sketch.num_maps", defaultNumMaps)
	viperCfg.SetDefault("sketch.length", defaultLength)
	viperCfg.SetDefault("sketch.perturbation", defaultPerturbR)
	viperCfg.SetDefault("sketch.hll_precision", 14)

	viperCfg.SetDefault("privacy.epsilon", defaultEpsilon)
	viperCfg.SetDefault("privacy.variant", "grr")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Privacy.Epsilon <= 0 {
		return fmt.Errorf("%w: %f", ErrInvalidEpsilon, config.Privacy.Epsilon)
	}

	if config.Privacy.Variant != "rrt" && config.Privacy.Variant != "grr" {
		return fmt.Errorf("%w: %q", ErrInvalidDPVariant, config.Privacy.Variant)
	}

	if len(config.Privacy.Domain) > 0 && len(config.Privacy.Domain) < 2 {
		return fmt.Errorf("%w: %d", ErrInvalidUniverse, len(config.Privacy.Domain))
	}

	if config.Sketch.Backend != "pcsa" && config.Sketch.Backend != "hll" {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, config.Sketch.Backend)
	}

	if config.Sketch.NumMaps <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidNumMaps, config.Sketch.NumMaps)
	}

	if config.Sketch.Length <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLength, config.Sketch.Length)
	}

	if config.Sketch.Perturbation < 0 || config.Sketch.Perturbation >= 1 {
		return fmt.Errorf("%w: %f", ErrInvalidPerturb, config.Sketch.Perturbation)
	}

	return nil
}
