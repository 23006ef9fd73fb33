package config

import (
	"fmt"
	"strings"
)

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Video.Validate(); err != nil {
		return fmt.Errorf("video config: %w", err)
	}

	if err := c.QR.Validate(); err != nil {
		return fmt.Errorf("qr config: %w", err)
	}

	if err := c.Generate.Validate(); err != nil {
		return fmt.Errorf("generate config: %w", err)
	}

	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("scan config: %w", err)
	}

	if err := c.Report.Redis.Validate(); err != nil {
		return fmt.Errorf("report config: %w", err)
	}

	if err := c.Preflight.Validate(); err != nil {
		return fmt.Errorf("preflight config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (v *VideoConfig) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %dx%d", v.Width, v.Height)
	}

	// yuv420p output needs even dimensions
	if v.Width%2 != 0 || v.Height%2 != 0 {
		return fmt.Errorf("frame dimensions must be even, got %dx%d", v.Width, v.Height)
	}

	if v.FPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}

	if v.Codec == "" {
		return fmt.Errorf("codec cannot be empty")
	}

	if v.Quality < 0 || v.Quality > 1 {
		return fmt.Errorf("quality must be between 0 and 1")
	}

	return nil
}

func (q *QRConfig) Validate() error {
	switch strings.ToLower(q.Recovery) {
	case "low", "medium", "high", "highest":
		return nil
	default:
		return fmt.Errorf("invalid recovery level: %s", q.Recovery)
	}
}

func (g *GenerateConfig) Validate() error {
	if g.WorkDir == "" {
		return fmt.Errorf("work_dir cannot be empty")
	}

	if g.DefaultOutput == "" {
		return fmt.Errorf("default_output cannot be empty")
	}

	return nil
}

func (s *ScanConfig) Validate() error {
	if s.MaxTotalFrames < 0 {
		return fmt.Errorf("max_total_frames must be non-negative")
	}

	switch s.Format {
	case "text", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("format must be 'text', 'json' or 'yaml'")
	}
}

func (r *RedisConfig) Validate() error {
	if r.Addr == "" {
		return nil
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}

	if r.KeyPrefix == "" {
		return fmt.Errorf("key_prefix cannot be empty")
	}

	return nil
}

func (p *PreflightConfig) Validate() error {
	if p.Enabled && p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}

	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		return fmt.Errorf("read and write timeouts must be positive")
	}

	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}

	if s.RateLimit > 0 && s.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate limiting is enabled")
	}

	return nil
}
