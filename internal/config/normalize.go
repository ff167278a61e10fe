package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSupervisor()
	c.normalizeDownloader()
	c.normalizeMediaServer()
	c.normalizeLogging()
	if strings.TrimSpace(c.RAG.DefaultModel) == "" {
		c.RAG.DefaultModel = defaultRAGModel
	}
	if c.Events.SubscriberBuffer <= 0 {
		c.Events.SubscriberBuffer = defaultSubscriberBuffer
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("YDH_PROJECT_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.ProjectRoot = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.ProjectRoot, err = expandPath(strings.TrimSpace(c.Paths.ProjectRoot)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return err
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeSupervisor() {
	if c.Supervisor.InactivityTimeoutSeconds <= 0 {
		c.Supervisor.InactivityTimeoutSeconds = defaultInactivityTimeoutSeconds
	}
	if c.Supervisor.PollIntervalMillis <= 0 {
		c.Supervisor.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Supervisor.TerminateGraceMillis <= 0 {
		c.Supervisor.TerminateGraceMillis = defaultTerminateGraceMillis
	}
	if c.Supervisor.StderrTailLines <= 0 {
		c.Supervisor.StderrTailLines = defaultStderrTailLines
	}
}

func (c *Config) normalizeDownloader() {
	c.Downloader.DefaultQuality = strings.TrimSpace(c.Downloader.DefaultQuality)
	if c.Downloader.FullScanSocketTimeout <= 0 {
		c.Downloader.FullScanSocketTimeout = defaultFullScanSocketTimeout
	}
	if c.Downloader.SocketTimeout <= 0 {
		c.Downloader.SocketTimeout = defaultSocketTimeout
	}
}

func (c *Config) normalizeMediaServer() {
	origins := make([]string, 0, len(c.MediaServer.AllowedOrigins))
	seen := make(map[string]struct{}, len(c.MediaServer.AllowedOrigins))
	for _, origin := range c.MediaServer.AllowedOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		origins = append(origins, trimmed)
	}
	c.MediaServer.AllowedOrigins = origins
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
