package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Calibration CalibrationConfig `yaml:"calibration" mapstructure:"calibration"`
	Matcher     MatcherConfig     `yaml:"matcher" mapstructure:"matcher"`
	Accuracy    AccuracyConfig    `yaml:"accuracy" mapstructure:"accuracy"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CalculateRPS   float64  `yaml:"calculate_rps" mapstructure:"calculate_rps"`
	CalculateBurst int      `yaml:"calculate_burst" mapstructure:"calculate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CalibrationConfig configures homography validation.
type CalibrationConfig struct {
	ReprojectionToleranceM float64 `yaml:"reprojection_tolerance_m" mapstructure:"reprojection_tolerance_m"`
	CollinearityTolerance  float64 `yaml:"collinearity_tolerance" mapstructure:"collinearity_tolerance"`
	MaxConditionNumber     float64 `yaml:"max_condition_number" mapstructure:"max_condition_number"`
	MinPitchLengthM        float64 `yaml:"min_pitch_length_m" mapstructure:"min_pitch_length_m"`
	MaxPitchLengthM        float64 `yaml:"max_pitch_length_m" mapstructure:"max_pitch_length_m"`
	MinPitchWidthM         float64 `yaml:"min_pitch_width_m" mapstructure:"min_pitch_width_m"`
	MaxPitchWidthM         float64 `yaml:"max_pitch_width_m" mapstructure:"max_pitch_width_m"`
	PitchMarginM           float64 `yaml:"pitch_margin_m" mapstructure:"pitch_margin_m"`
	MaxPoints              int     `yaml:"max_points" mapstructure:"max_points"`
}

// MatcherConfig configures AI versus ground truth event matching.
type MatcherConfig struct {
	FrameWindow      int     `yaml:"frame_window" mapstructure:"frame_window"`
	TemporalWeight   float64 `yaml:"temporal_weight" mapstructure:"temporal_weight"`
	SpatialWeight    float64 `yaml:"spatial_weight" mapstructure:"spatial_weight"`
	TypeWeight       float64 `yaml:"type_weight" mapstructure:"type_weight"`
	PartialTypeScore float64 `yaml:"partial_type_score" mapstructure:"partial_type_score"`
	MetersPerPixel   float64 `yaml:"meters_per_pixel" mapstructure:"meters_per_pixel"`
	MaxDistanceM     float64 `yaml:"max_distance_m" mapstructure:"max_distance_m"`
	MaxHalf          int     `yaml:"max_half" mapstructure:"max_half"`
	MaxPartitionSize int     `yaml:"max_partition_size" mapstructure:"max_partition_size"`
}

// AccuracyConfig configures metric aggregation.
type AccuracyConfig struct {
	TrendPeriods       int `yaml:"trend_periods" mapstructure:"trend_periods"`
	ComputeTimeoutSecs int `yaml:"compute_timeout_secs" mapstructure:"compute_timeout_secs"`
}

// BatchConfig configures batch recomputation.
type BatchConfig struct {
	MaxConcurrentMatches int `yaml:"max_concurrent_matches" mapstructure:"max_concurrent_matches"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "review.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.calculate_rps", 2.0)
	v.SetDefault("server.calculate_burst", 4)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("calibration.reprojection_tolerance_m", 1.0)
	v.SetDefault("calibration.collinearity_tolerance", 1e-3)
	v.SetDefault("calibration.max_condition_number", 1e12)
	v.SetDefault("calibration.min_pitch_length_m", 90.0)
	v.SetDefault("calibration.max_pitch_length_m", 120.0)
	v.SetDefault("calibration.min_pitch_width_m", 45.0)
	v.SetDefault("calibration.max_pitch_width_m", 90.0)
	v.SetDefault("calibration.pitch_margin_m", 5.0)
	v.SetDefault("calibration.max_points", 32)
	v.SetDefault("matcher.frame_window", 75)
	v.SetDefault("matcher.temporal_weight", 0.6)
	v.SetDefault("matcher.spatial_weight", 0.3)
	v.SetDefault("matcher.type_weight", 0.1)
	v.SetDefault("matcher.partial_type_score", 0.5)
	v.SetDefault("matcher.meters_per_pixel", 0.1)
	v.SetDefault("matcher.max_distance_m", 30.0)
	v.SetDefault("matcher.max_half", 4)
	v.SetDefault("matcher.max_partition_size", 2000)
	v.SetDefault("accuracy.trend_periods", 10)
	v.SetDefault("accuracy.compute_timeout_secs", 60)
	v.SetDefault("batch.max_concurrent_matches", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode is one of
// "serve", "calibrate", "accuracy" or "import".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.CalculateRPS <= 0 {
			errs = append(errs, "server.calculate_rps must be > 0")
		}
		if c.Server.CalculateBurst < 1 {
			errs = append(errs, "server.calculate_burst must be >= 1")
		}
	case "calibrate", "accuracy", "import":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	cal := c.Calibration
	if cal.ReprojectionToleranceM <= 0 {
		errs = append(errs, "calibration.reprojection_tolerance_m must be > 0")
	}
	if cal.CollinearityTolerance <= 0 || cal.CollinearityTolerance >= 1 {
		errs = append(errs, "calibration.collinearity_tolerance must be between 0 and 1")
	}
	if cal.MinPitchLengthM <= 0 || cal.MinPitchLengthM > cal.MaxPitchLengthM {
		errs = append(errs, "calibration pitch length bounds must satisfy 0 < min <= max")
	}
	if cal.MinPitchWidthM <= 0 || cal.MinPitchWidthM > cal.MaxPitchWidthM {
		errs = append(errs, "calibration pitch width bounds must satisfy 0 < min <= max")
	}
	if cal.PitchMarginM < 0 {
		errs = append(errs, "calibration.pitch_margin_m must be >= 0")
	}
	if cal.MaxPoints < 4 {
		errs = append(errs, "calibration.max_points must be >= 4")
	}

	m := c.Matcher
	if m.FrameWindow <= 0 {
		errs = append(errs, "matcher.frame_window must be > 0")
	}
	if m.TemporalWeight < 0 || m.SpatialWeight < 0 || m.TypeWeight < 0 {
		errs = append(errs, "matcher weights must be >= 0")
	} else if m.TemporalWeight+m.SpatialWeight+m.TypeWeight == 0 {
		errs = append(errs, "matcher weights must not all be zero")
	}
	if m.PartialTypeScore < 0 || m.PartialTypeScore > 1 {
		errs = append(errs, "matcher.partial_type_score must be between 0 and 1")
	}
	if m.MetersPerPixel < 0 || m.MaxDistanceM < 0 {
		errs = append(errs, "matcher distance settings must be >= 0")
	}
	if m.MaxHalf < 1 {
		errs = append(errs, "matcher.max_half must be >= 1")
	}
	if m.MaxPartitionSize < 1 {
		errs = append(errs, "matcher.max_partition_size must be >= 1")
	}

	if c.Batch.MaxConcurrentMatches < 1 || c.Batch.MaxConcurrentMatches > 64 {
		errs = append(errs, "batch.max_concurrent_matches must be between 1 and 64")
	}
	if c.Accuracy.TrendPeriods < 1 {
		errs = append(errs, "accuracy.trend_periods must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
