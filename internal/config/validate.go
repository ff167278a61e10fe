package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateMediaServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.Paths.APIBind == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(c.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	ip := net.ParseIP(host)
	if host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("paths.api_bind must be a loopback address, got %q", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateDownloader() error {
	d := c.Downloader
	if d.SleepInterval < 0 || d.MaxSleepInterval < 0 || d.SleepRequests < 0 {
		return errors.New("downloader sleep settings must not be negative")
	}
	if d.MaxSleepInterval < d.SleepInterval {
		return errors.New("downloader.max_sleep_interval must be >= downloader.sleep_interval")
	}
	if d.Retries < 0 || d.FullScanRetries < 0 {
		return errors.New("downloader retries must not be negative")
	}
	return nil
}

func (c *Config) validateMediaServer() error {
	start, end := c.MediaServer.FallbackPortStart, c.MediaServer.FallbackPortEnd
	if start <= 0 || end <= 0 {
		return errors.New("media_server fallback ports must be positive")
	}
	if start > end {
		return errors.New("media_server.fallback_port_start must be <= fallback_port_end")
	}
	if end > 65535 {
		return errors.New("media_server.fallback_port_end must be <= 65535")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
