package chessbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/archive"
	"github.com/park285/chessflix/internal/config"
	"github.com/park285/chessflix/internal/evalcache"
	"github.com/park285/chessflix/internal/evalclient"
	"github.com/park285/chessflix/internal/msgcat"
	"github.com/park285/chessflix/internal/session"
	"github.com/park285/chessflix/internal/viewfeed"
)

// Deps is everything the command loop needs besides the session itself.
type Deps struct {
	Backend session.Backend
	Client  *evalclient.Client
	Cache   *evalcache.Cache
	Archive archive.Source
	Feed    *viewfeed.Feed
	Catalog *msgcat.Catalog

	closers []func() error
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	d.Client = evalclient.NewClient(cfg.EvalBaseURL,
		evalclient.WithTimeout(time.Duration(cfg.EvalTimeoutSec)*time.Second),
		evalclient.WithRetry(cfg.EvalRetry),
		evalclient.WithMaxConnsPerHost(cfg.EvalMaxConns),
		evalclient.WithLogger(logger),
	)
	d.Backend = d.Client

	// Cache (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		c, err := evalcache.NewFromURL(ctx, cfg.RedisURL, d.Client, time.Duration(cfg.EvalCacheTTLSec)*time.Second, logger)
		if err != nil {
			return nil, fmt.Errorf("init eval cache: %w", err)
		}
		d.Cache = c
		d.Backend = c
		d.closers = append(d.closers, c.Close)
	}

	// Archive: Postgres mirror wins over the public API when configured
	switch {
	case strings.TrimSpace(cfg.ArchiveDatabaseURL) != "":
		pg, err := archive.NewPostgres(cfg.ArchiveDatabaseURL, cfg.ArchiveUser)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init archive db: %w", err)
		}
		d.Archive = pg
		d.closers = append(d.closers, pg.Close)
	case strings.TrimSpace(cfg.ArchiveUser) != "":
		d.Archive = archive.NewChessCom(cfg.ArchiveBaseURL, cfg.ArchiveUser,
			archive.WithLogger(logger),
			archive.WithProfiles(cfg.ArchiveProfiles),
		)
	}

	if cfg.ViewFeedWSURL != "" || cfg.ViewFeedDryRun {
		d.Feed = viewfeed.New(cfg.ViewFeedWSURL, cfg.ViewFeedReconnect,
			viewfeed.WithLogger(logger),
			viewfeed.WithDryRun(cfg.ViewFeedDryRun),
			viewfeed.WithPingInterval(time.Duration(cfg.ViewFeedPingSec)*time.Second),
			viewfeed.WithHeaderProvider(viewfeed.BearerToken(cfg.ViewFeedToken)),
		)
		d.closers = append(d.closers, func() error {
			cctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return d.Feed.Close(cctx)
		})
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Catalog = cat
	return d, nil
}

// Close releases resources in reverse order of creation.
func (d *Deps) Close() {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
	d.closers = nil
}
