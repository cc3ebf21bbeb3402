// Command simulate plays synthetic duel sessions against the ranking
// service and reports how well the recovered order matches ground truth.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	app "github.com/okian/duet/internal/app"
	"github.com/okian/duet/internal/simulate"
	"github.com/okian/duet/pkg/logger"
)

func main() {
	songs := flag.Int("songs", 10, "catalog size")
	duels := flag.Int("duels", 60, "duels to play")
	seed := flag.Int64("seed", 1, "random seed")
	artist := flag.String("artist", "Simulated Artist", "artist name")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := app.New(app.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	runner := simulate.NewRunner(simulate.NewServiceRanker(svc), simulate.Config{
		Artist:    *artist,
		SongCount: *songs,
		DuelCount: *duels,
		Seed:      *seed,
	})

	res, err := runner.Run(ctx)
	if err != nil {
		log.Error(ctx, "simulation failed", logger.Error(err))
		return
	}

	log.Info(ctx, "simulation finished",
		logger.String("session", res.SessionID),
		logger.Int("duels", res.DuelCount),
		logger.Float64("convergence", res.ConvergenceScore),
		logger.Float64("pairAgreement", res.PairAgreement),
	)
}
