package simulate

import (
	"context"

	service "github.com/okian/duet/internal/app"
	"github.com/okian/duet/internal/domain/model"
)

// serviceRanker adapts the application service to the Ranker interface.
type serviceRanker struct {
	svc *service.Service
}

// NewServiceRanker wraps the application service for simulation runs.
func NewServiceRanker(svc *service.Service) Ranker {
	return &serviceRanker{svc: svc}
}

func (r *serviceRanker) CreateSession(ctx context.Context, userID, artist string, songs []model.Song) (string, error) {
	info, err := r.svc.CreateSession(ctx, userID, artist, songs)
	if err != nil {
		return "", err
	}
	return info.SessionID, nil
}

func (r *serviceRanker) RecordDuel(ctx context.Context, sessionID, songA, songB, winner string, isTie bool, decisionLatencyMs int) (float64, error) {
	res, err := r.svc.RecordDuel(ctx, sessionID, songA, songB, winner, isTie, decisionLatencyMs)
	if err != nil {
		return 0, err
	}
	return res.ConvergenceScore, nil
}

func (r *serviceRanker) SessionRatings(ctx context.Context, sessionID string) (map[string]float64, error) {
	sess, err := r.svc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(sess.Songs))
	for _, ss := range sess.Songs {
		out[ss.SongID] = ss.LocalRating
	}
	return out, nil
}
