package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Video     VideoConfig     `mapstructure:"video"`
	QR        QRConfig        `mapstructure:"qr"`
	Generate  GenerateConfig  `mapstructure:"generate"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Report    ReportConfig    `mapstructure:"report"`
	Preflight PreflightConfig `mapstructure:"preflight"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`     // json or text
	Output     string `mapstructure:"output"`     // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`   // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	// Textfile is a node_exporter textfile collector path. Empty disables.
	Textfile string `mapstructure:"textfile"`
}

type VideoConfig struct {
	Width   int     `mapstructure:"width"`
	Height  int     `mapstructure:"height"`
	FPS     float64 `mapstructure:"fps"`
	Codec   string  `mapstructure:"codec"`
	Quality float64 `mapstructure:"quality"` // 0.0-1.0, 1.0 is best
}

type QRConfig struct {
	Recovery string `mapstructure:"recovery"` // low, medium, high, highest
}

type GenerateConfig struct {
	WorkDir       string `mapstructure:"work_dir"`
	DefaultOutput string `mapstructure:"default_output"`
	KeepFrames    bool   `mapstructure:"keep_frames"`
	Seed          uint64 `mapstructure:"seed"` // 0 derives a seed from the clock
}

type ScanConfig struct {
	Strict    bool   `mapstructure:"strict"`
	TryHarder bool   `mapstructure:"try_harder"`
	Format    string `mapstructure:"format"` // text, json or yaml
	// Upper bound on the frame count a scanned sync record may declare.
	MaxTotalFrames int `mapstructure:"max_total_frames"`
}

type ReportConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"` // empty disables publishing
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PreflightConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	FFmpegPath  string        `mapstructure:"ffmpeg_path"`
	FFprobePath string        `mapstructure:"ffprobe_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
}

// Load reads configuration from configPath (optional), FRAMECHECK_* environment
// variables and built-in defaults, in increasing order of precedence for the
// first two.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix("FRAMECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("metrics.textfile", "")

	// Video defaults
	v.SetDefault("video.width", 500)
	v.SetDefault("video.height", 500)
	v.SetDefault("video.fps", 60)
	v.SetDefault("video.codec", "libx264")
	v.SetDefault("video.quality", 1.0)

	v.SetDefault("qr.recovery", "medium")

	// Generate defaults
	v.SetDefault("generate.work_dir", "qr_frames")
	v.SetDefault("generate.default_output", "qr_video.mp4")
	v.SetDefault("generate.keep_frames", false)
	v.SetDefault("generate.seed", 0)

	// Scan defaults
	v.SetDefault("scan.strict", false)
	v.SetDefault("scan.try_harder", true)
	v.SetDefault("scan.format", "text")
	v.SetDefault("scan.max_total_frames", 1000000)

	// Report publishing defaults
	v.SetDefault("report.redis.addr", "")
	v.SetDefault("report.redis.db", 0)
	v.SetDefault("report.redis.ttl", "168h")
	v.SetDefault("report.redis.key_prefix", "framecheck:")
	v.SetDefault("report.redis.timeout", "3s")

	// Preflight defaults
	v.SetDefault("preflight.enabled", true)
	v.SetDefault("preflight.ffmpeg_path", "")
	v.SetDefault("preflight.ffprobe_path", "")
	v.SetDefault("preflight.timeout", "5s")

	// Report server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
}
