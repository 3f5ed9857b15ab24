package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/config"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/logger"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

const envFile = ".env"

var (
	log         = logger.Std()
	coordinator *pipeline.Coordinator
)

var (
	flagPoll      = flag.Duration("poll", 50*time.Millisecond, "presentation poll interval")
	flagAnsiArt   = flag.Int("ansi-art", 0, "output ansi art on modulo frame")
	flagHistogram = flag.Bool("histogram", false, "draw the histogram under ansi frames")
	flagFlicker   = flag.Bool("flicker", false, "reset terminal in ansi mode")
	flagDumpFSM   = flag.Bool("dump-fsm", false, "write graphviz src and exit")
	flagNoKeys    = flag.Bool("no-keys", false, "do not read keys from the terminal")
)

func main() {
	cfg := config.Default()
	if err := cfg.LoadEnv(envFile); err != nil {
		log.WithError(err).Fatal("config.LoadEnv")
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if *flagDumpFSM {
		fmt.Println(pipeline.VisualizeLifecycle())
		return
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		log.WithError(err).Fatal("logger.SetLevel")
	}

	c, err := pipeline.NewCoordinator(cfg)
	if err != nil {
		log.WithError(err).Fatal("pipeline.NewCoordinator")
	}
	coordinator = c

	ctx, ctxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer func() {
		ctxCancel()
		log.Info("main exiting")
	}()

	if err := c.Start(ctx); err != nil {
		log.WithError(err).Fatal("coordinator.Start")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return present(ctx, c, *flagPoll)
	})
	if !*flagNoKeys {
		go scanKeys(ctx)
	}

	if err := g.Wait(); err != nil {
		log.Error(err)
	}
}
