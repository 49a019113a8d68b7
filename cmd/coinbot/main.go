package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirrezam75/coinrace/client"
	"github.com/amirrezam75/coinrace/game"
	"github.com/amirrezam75/coinrace/pkg/logx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Distance under which the bot stops pushing along an axis.
const deadZone = 3

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "game server websocket url")
	count := flag.Int("bots", 1, "number of bots")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logx.NewLogger(logx.Config{Level: *level, Format: "console"})
	defer logx.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	for i := range *count {
		eg.Go(func() error {
			runBot(ctx, *url, i)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// runBot keeps one bot connected until ctx is cancelled.
func runBot(ctx context.Context, url string, id int) {
	logger := logx.Logger.With(zap.Int("botId", id))

	for ctx.Err() == nil {
		err := play(ctx, url, logger)
		if err == nil || ctx.Err() != nil {
			return
		}

		logger.Warnw("bot session ended, reconnecting", zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func play(ctx context.Context, url string, logger *zap.SugaredLogger) error {
	session, err := client.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer session.Close()

	logger.Infow("connected", zap.String("url", url))

	sizes := game.DefaultConfig()
	lastRank := ""

	return session.Run(ctx, func(view client.View) {
		if view.Me == nil {
			return
		}

		if view.Rank != lastRank {
			logger.Infow("standing", zap.Int("score", view.Me.Score), zap.String("rank", view.Rank))
			lastRank = view.Rank
		}

		dx := (view.Collectible.X + sizes.CollectibleWidth/2) - (view.Me.X + sizes.PlayerWidth/2)
		dy := (view.Collectible.Y + sizes.CollectibleHeight/2) - (view.Me.Y + sizes.PlayerHeight/2)

		steer(session, client.KeyLeft, client.KeyRight, dx, logger)
		steer(session, client.KeyUp, client.KeyDown, dy, logger)
	})
}

// steer holds the key pointing toward the target on one axis and releases
// the other. The session drops presses that change nothing.
func steer(session *client.Session, negative, positive client.Key, distance float64, logger *zap.SugaredLogger) {
	toggle := func(key client.Key, down bool) {
		var err error
		if down {
			err = session.Press(key)
		} else {
			err = session.Release(key)
		}
		if err != nil {
			logger.Warnw(err.Error(), zap.String("desc", "could not send input"))
		}
	}

	toggle(negative, distance < -deadZone)
	toggle(positive, distance > deadZone)
}
