package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/adapter/textpresenter"
	"github.com/park285/chessflix/internal/chessbuilder"
	appcfg "github.com/park285/chessflix/internal/config"
	"github.com/park285/chessflix/internal/obslog"
	"github.com/park285/chessflix/internal/session"
	"github.com/park285/chessflix/internal/viewfeed"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := chessbuilder.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer deps.Close()

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithSpeed(cfg.AutoplaySpeedSec),
		session.WithPreviewSpeed(cfg.PreviewSpeedSec),
		session.WithAnalysis(cfg.PreviewDepth, cfg.PreviewCount),
	}
	if deps.Feed != nil {
		opts = append(opts, session.WithPublisher(textpresenter.NewFeedPublisher(deps.Feed, logger)))
	}
	sess := session.New(deps.Backend, opts...)
	defer sess.Close()

	out := bufio.NewWriter(os.Stdout)
	a := &app{
		sess:      sess,
		archive:   deps.Archive,
		formatter: textpresenter.NewFormatter(deps.Catalog),
		presenter: textpresenter.NewPresenter(func(m string) error {
			if _, err := fmt.Fprintln(out, m); err != nil {
				return err
			}
			return out.Flush()
		}),
		logger: logger,
	}

	lines := make(chan string)

	// Renderer commands arrive on the feed and share the stdin loop.
	if deps.Feed != nil {
		deps.Feed.OnStateChange(func(state viewfeed.State) {
			logger.Info("viewfeed_state", zap.String("state", string(state)))
		})
		deps.Feed.OnMessage(func(msg *viewfeed.Message) {
			cmd, ok := msg.Command()
			if !ok {
				return
			}
			select {
			case lines <- cmd:
			case <-ctx.Done():
			}
		})
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := deps.Feed.Connect(cctx); err != nil {
			logger.Warn("viewfeed_unavailable", zap.Error(err))
		}
		cancel()
	}

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		stop()
	}()

	a.say(a.formatter.Help())
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-lines:
			if a.handle(ctx, line) {
				return
			}
		}
	}
}
