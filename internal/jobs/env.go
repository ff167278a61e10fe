package jobs

import (
	"errors"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"ydhouse/internal/logging"
	"ydhouse/internal/services"
)

// Base variables every python worker gets.
var workerBase = map[string]string{
	"PYTHONUNBUFFERED": "1",
	"PYTHONIOENCODING": "utf-8",
}

// environment merges, in increasing precedence, the parent environment, the
// project .env file, the python worker base and overrides. The result is
// sorted by key.
func (s *Service) environment(overrides map[string]string) ([]string, error) {
	merged := make(map[string]string)
	for _, kv := range s.environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		merged[key] = value
	}

	dotenv, err := godotenv.Read(s.layout.EnvFile())
	switch {
	case err == nil:
		for key, value := range dotenv {
			merged[key] = value
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, services.Wrap(services.ErrMalformed, "jobs", "environment", "parse "+s.layout.EnvFile(), err)
	}

	for key, value := range workerBase {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+merged[key])
	}
	s.logger.Debug("worker environment prepared",
		logging.Int("variables", len(env)),
		logging.Int("dotenv_variables", len(dotenv)),
	)
	return env, nil
}

// downloaderEnv returns the rate-limit knobs for the batch downloader.
func (s *Service) downloaderEnv(fullScan bool, quality string) map[string]string {
	d := s.cfg.Downloader
	socketTimeout, retries := d.SocketTimeout, d.Retries
	if fullScan {
		socketTimeout, retries = d.FullScanSocketTimeout, d.FullScanRetries
	}
	env := map[string]string{
		"YDH_YTDLP_SLEEP_INTERVAL":     strconv.Itoa(d.SleepInterval),
		"YDH_YTDLP_MAX_SLEEP_INTERVAL": strconv.Itoa(d.MaxSleepInterval),
		"YDH_YTDLP_SLEEP_REQUESTS":     strconv.Itoa(d.SleepRequests),
		"YDH_YTDLP_SOCKET_TIMEOUT":     strconv.Itoa(socketTimeout),
		"YDH_YTDLP_RETRIES":            strconv.Itoa(retries),
	}
	if quality != "" {
		env["YDH_VIDEO_QUALITY"] = quality
	}
	return env
}
