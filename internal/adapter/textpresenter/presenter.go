package textpresenter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/session"
	"github.com/park285/chessflix/internal/viewfeed"
)

// Presenter delivers formatted text without coupling to the command layer.
type Presenter struct {
	sendMessage func(message string) error
}

func NewPresenter(sendMessage func(message string) error) *Presenter {
	return &Presenter{sendMessage: sendMessage}
}

func (p *Presenter) Show(message string) error {
	if p == nil || p.sendMessage == nil {
		return nil
	}
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(message)
}

// Feed is the subset of the view feed used for publishing.
type Feed interface {
	Publish(ctx context.Context, v any) error
}

// FeedPublisher forwards session snapshots to the renderer as view DTOs.
// A snapshot older than one already sent is dropped.
type FeedPublisher struct {
	feed    Feed
	logger  *zap.Logger
	timeout time.Duration

	mu   sync.Mutex
	last uint64
}

func NewFeedPublisher(feed Feed, logger *zap.Logger) *FeedPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedPublisher{feed: feed, logger: logger, timeout: 3 * time.Second}
}

func (p *FeedPublisher) Publish(snap session.Snapshot) {
	if p == nil || p.feed == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.Seq != 0 && snap.Seq <= p.last {
		p.logger.Debug("viewfeed_snapshot_stale", zap.Uint64("seq", snap.Seq), zap.Uint64("last", p.last))
		return
	}
	p.last = snap.Seq
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.feed.Publish(ctx, ToDTOSnapshot(snap)); err != nil {
		if errors.Is(err, viewfeed.ErrNotConnected) {
			p.logger.Debug("viewfeed_publish_skipped", zap.String("game", snap.GameID.String()))
			return
		}
		p.logger.Warn("viewfeed_publish_failed", zap.Error(err))
	}
}
