package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	EvalBaseURL    string
	EvalTimeoutSec int
	EvalRetry      int
	EvalMaxConns   int

	RedisURL        string
	EvalCacheTTLSec int

	ArchiveBaseURL     string
	ArchiveUser        string
	ArchiveProfiles    bool
	ArchiveDatabaseURL string

	ViewFeedWSURL     string
	ViewFeedDryRun    bool
	ViewFeedReconnect int
	ViewFeedToken     string
	ViewFeedPingSec   int

	AutoplaySpeedSec float64
	PreviewSpeedSec  float64
	PreviewCount     int
	PreviewDepth     int

	MessagesDir string
}

const (
	MinDepth        = 1
	MaxDepth        = 30
	MaxPreviewCount = 10
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EvalBaseURL:       "http://127.0.0.1:5000",
		EvalTimeoutSec:    30,
		EvalRetry:         3,
		EvalMaxConns:      16,
		EvalCacheTTLSec:   86400,
		ArchiveBaseURL:    "https://api.chess.com/pub",
		ViewFeedReconnect: 5,
		ViewFeedPingSec:   30,
		AutoplaySpeedSec:  10,
		PreviewSpeedSec:   10,
		PreviewCount:      3,
		PreviewDepth:      20,
	}

	if v := strings.TrimSpace(os.Getenv("EVAL_BASE_URL")); v != "" {
		cfg.EvalBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("EVAL_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalTimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EVAL_RETRY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.EvalRetry = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EVAL_MAX_CONNS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalMaxConns = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("EVAL_CACHE_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalCacheTTLSec = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("ARCHIVE_BASE_URL")); v != "" {
		cfg.ArchiveBaseURL = v
	}
	cfg.ArchiveUser = strings.TrimSpace(os.Getenv("ARCHIVE_USER"))
	if v := strings.TrimSpace(os.Getenv("ARCHIVE_PROFILES")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ArchiveProfiles = b
		}
	}
	cfg.ArchiveDatabaseURL = strings.TrimSpace(os.Getenv("ARCHIVE_DATABASE_URL"))

	cfg.ViewFeedWSURL = strings.TrimSpace(os.Getenv("VIEWFEED_WS_URL"))
	if v := strings.TrimSpace(os.Getenv("VIEWFEED_DRYRUN")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ViewFeedDryRun = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("VIEWFEED_RECONNECT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ViewFeedReconnect = n
		}
	}
	cfg.ViewFeedToken = strings.TrimSpace(os.Getenv("VIEWFEED_TOKEN"))
	if v := strings.TrimSpace(os.Getenv("VIEWFEED_PING_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ViewFeedPingSec = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("AUTOPLAY_SPEED_SEC")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.AutoplaySpeedSec = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("PREVIEW_SPEED_SEC")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PreviewSpeedSec = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("PREVIEW_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PreviewCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PREVIEW_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PreviewDepth = n
		}
	}

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	u, err := url.Parse(c.EvalBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("EVAL_BASE_URL must be an http(s) URL: %q", c.EvalBaseURL)
	}
	if c.AutoplaySpeedSec < 0.5 || c.AutoplaySpeedSec > 10 {
		return errors.New("AUTOPLAY_SPEED_SEC must be within [0.5, 10]")
	}
	if c.PreviewSpeedSec < 0.5 || c.PreviewSpeedSec > 10 {
		return errors.New("PREVIEW_SPEED_SEC must be within [0.5, 10]")
	}
	if c.PreviewCount < 0 || c.PreviewCount > MaxPreviewCount {
		return fmt.Errorf("PREVIEW_COUNT must be within [0, %d]", MaxPreviewCount)
	}
	if c.PreviewDepth < MinDepth || c.PreviewDepth > MaxDepth {
		return fmt.Errorf("PREVIEW_DEPTH must be within [%d, %d]", MinDepth, MaxDepth)
	}
	if c.ViewFeedWSURL != "" && !strings.HasPrefix(c.ViewFeedWSURL, "ws://") && !strings.HasPrefix(c.ViewFeedWSURL, "wss://") {
		return errors.New("VIEWFEED_WS_URL must start with ws:// or wss://")
	}
	return nil
}
