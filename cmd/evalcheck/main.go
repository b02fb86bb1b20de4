package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/evalclient"
	"github.com/park285/chessflix/internal/viewfeed"
)

func main() {
	baseURL := os.Getenv("EVAL_BASE_URL")
	wsURL := os.Getenv("VIEWFEED_WS_URL")

	if baseURL == "" {
		log.Fatal("EVAL_BASE_URL is required")
	}

	client := evalclient.NewClient(baseURL,
		evalclient.WithTimeout(8*time.Second),
		evalclient.WithRetry(1),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Reset(ctx); err != nil {
		log.Printf("/reset error: %v", err)
	} else {
		log.Println("/reset ok")
	}

	cp, err := client.EvaluatePosition(ctx, domain.StartFEN)
	if err != nil {
		log.Printf("/evaluate error: %v", err)
	} else {
		log.Printf("/evaluate ok: start position %d cp", cp)
	}

	lines, err := client.Previews(ctx, domain.StartFEN, 2, 8)
	if err != nil {
		log.Printf("/previews error: %v", err)
	} else {
		for i, p := range lines {
			log.Printf("/previews ok: line %d moves=%v evals=%v", i, p.Moves, p.Scores())
		}
	}

	if wsURL == "" {
		log.Println("VIEWFEED_WS_URL not set; skipping WS check")
		return
	}

	feed := viewfeed.New(wsURL, 0)
	feed.OnStateChange(func(state viewfeed.State) {
		log.Printf("WS state: %s", state)
	})
	feed.OnMessage(func(msg *viewfeed.Message) {
		if line, ok := msg.Command(); ok {
			fmt.Printf("WS command %q\n", line)
			return
		}
		fmt.Printf("WS frame type=%s\n", msg.Type)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := feed.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	// observe briefly
	t := time.NewTimer(10 * time.Second)
	<-t.C

	_ = feed.Close(context.Background())
}
