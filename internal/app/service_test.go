package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/duet/internal/adapters/repository"
	service "github.com/okian/duet/internal/app"
	"github.com/okian/duet/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newService(t *testing.T, opts ...service.Option) (*service.Service, *repository.MemStore) {
	t.Helper()
	store := repository.NewMemStore()
	svc := service.New(append([]service.Option{service.WithStore(store)}, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc, store
}

func catalog() []model.Song {
	return []model.Song{
		{ID: "a", Title: "Alpha", Artist: "Queen"},
		{ID: "b", Title: "Beta", Artist: "Queen"},
		{ID: "c", Title: "Gamma", Artist: "Queen"},
	}
}

func eventually(f func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestCreateSession(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc, store := newService(t)
		ctx := context.Background()

		Convey("When a catalog with duplicates is submitted", func() {
			songs := append(catalog(), model.Song{ID: "a2", Title: "Alpha (2011 Remaster)", Artist: "Queen"})
			info, err := svc.CreateSession(ctx, "u1", "Queen", songs)

			So(err, ShouldBeNil)
			So(info.SessionID, ShouldNotBeEmpty)

			Convey("Then the duplicate was collapsed before the session opened", func() {
				So(info.SongCount, ShouldEqual, 3)
				_, err := store.GetSong(ctx, "a")
				So(err, ShouldBeNil)
			})

			Convey("Then session songs start at the baseline", func() {
				sess, err := svc.Session(ctx, info.SessionID)
				So(err, ShouldBeNil)
				So(sess.Songs, ShouldHaveLength, 3)
				So(sess.Songs[0].LocalRating, ShouldEqual, 1500.0)
				So(sess.Status, ShouldEqual, model.SessionActive)
			})
		})

		Convey("When the catalog collapses below two songs", func() {
			_, err := svc.CreateSession(ctx, "u1", "Queen", []model.Song{
				{ID: "x", Title: "Only One", Artist: "Queen"},
				{ID: "y", Title: "Only One (Remaster)", Artist: "Queen"},
			})
			So(errors.Is(err, service.ErrTooFewSongs), ShouldBeTrue)
		})
	})
}

func TestRecordDuelValidation(t *testing.T) {
	Convey("Given an open session", t, func() {
		svc, _ := newService(t)
		ctx := context.Background()
		info, err := svc.CreateSession(ctx, "u1", "Queen", catalog())
		So(err, ShouldBeNil)

		Convey("Then a song cannot duel itself", func() {
			_, err := svc.RecordDuel(ctx, info.SessionID, "a", "a", "a", false, 0)
			So(errors.Is(err, service.ErrInvalidDuel), ShouldBeTrue)
		})

		Convey("Then both songs must belong to the session", func() {
			_, err := svc.RecordDuel(ctx, info.SessionID, "a", "zz", "a", false, 0)
			So(errors.Is(err, service.ErrSongNotInSession), ShouldBeTrue)
		})

		Convey("Then the winner must be one of the pair", func() {
			_, err := svc.RecordDuel(ctx, info.SessionID, "a", "b", "c", false, 0)
			So(errors.Is(err, service.ErrInvalidDuel), ShouldBeTrue)
		})

		Convey("Then a tie cannot name a winner", func() {
			_, err := svc.RecordDuel(ctx, info.SessionID, "a", "b", "a", true, 0)
			So(errors.Is(err, service.ErrInvalidDuel), ShouldBeTrue)
		})

		Convey("Then an unknown session is rejected", func() {
			_, err := svc.RecordDuel(ctx, "nope", "a", "b", "a", false, 0)
			So(errors.Is(err, repository.ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("Then a completed session rejects duels", func() {
			So(svc.CompleteSession(ctx, info.SessionID), ShouldBeNil)
			_, err := svc.RecordDuel(ctx, info.SessionID, "a", "b", "a", false, 0)
			So(errors.Is(err, repository.ErrSessionComplete), ShouldBeTrue)
		})
	})
}

func TestRecordDuelRecomputeCadence(t *testing.T) {
	Convey("Given an open session", t, func() {
		svc, store := newService(t)
		ctx := context.Background()
		info, err := svc.CreateSession(ctx, "u1", "Queen", catalog())
		So(err, ShouldBeNil)

		pairs := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}, {"a", "b"}, {"a", "c"}}

		Convey("When duels one through four are recorded", func() {
			for i := 0; i < 4; i++ {
				res, err := svc.RecordDuel(ctx, info.SessionID, pairs[i][0], pairs[i][1], pairs[i][0], false, 2000)
				So(err, ShouldBeNil)
				So(res.DuelCount, ShouldEqual, i+1)
				So(res.Recomputed, ShouldBeFalse)
				So(res.Ratings, ShouldBeEmpty)
			}

			Convey("And no global aggregation was asked for yet", func() {
				st, err := store.AggregateState(ctx, model.ArtistKey("Queen"))
				So(err, ShouldBeNil)
				So(st.ProcessedDuelCount, ShouldEqual, 0)
				So(st.LastUpdateAt.IsZero(), ShouldBeTrue)
			})

			Convey("And the fifth duel pays for the recompute", func() {
				res, err := svc.RecordDuel(ctx, info.SessionID, "a", "c", "a", false, 2000)
				So(err, ShouldBeNil)
				So(res.DuelCount, ShouldEqual, 5)
				So(res.Recomputed, ShouldBeTrue)
				So(res.Ratings, ShouldHaveLength, 3)

				Convey("With the consistent winner on top", func() {
					So(res.Ratings[0].SongID, ShouldEqual, "a")
					So(res.Ratings[0].Rating, ShouldBeGreaterThan, res.Ratings[2].Rating)
				})

				Convey("And a convergence score between zero and one", func() {
					So(res.ConvergenceScore, ShouldBeGreaterThan, 0)
					So(res.ConvergenceScore, ShouldBeLessThanOrEqualTo, 1)
				})

				Convey("And the recompute nudged the global aggregation", func() {
					So(eventually(func() bool {
						st, _ := store.AggregateState(ctx, model.ArtistKey("Queen"))
						return st.ProcessedDuelCount > 0
					}), ShouldBeTrue)
				})
			})
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given a session with enough duels for an aggregation run", t, func() {
		svc, store := newService(t)
		ctx := context.Background()
		info, err := svc.CreateSession(ctx, "u1", "Queen", catalog())
		So(err, ShouldBeNil)

		pairs := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}, {"a", "b"}, {"a", "c"}, {"b", "c"}}
		for _, p := range pairs {
			_, err := svc.RecordDuel(ctx, info.SessionID, p[0], p[1], p[0], false, 2000)
			So(err, ShouldBeNil)
		}

		So(eventually(func() bool {
			st, _ := store.AggregateState(ctx, model.ArtistKey("Queen"))
			return st.ProcessedDuelCount > 0
		}), ShouldBeTrue)

		Convey("When the leaderboard is read", func() {
			board, err := svc.Leaderboard(ctx, "Queen", 10)
			So(err, ShouldBeNil)

			Convey("Then entries come ranked with the strongest first", func() {
				So(board.Entries, ShouldHaveLength, 3)
				So(board.Entries[0].SongID, ShouldEqual, "a")
				So(board.Entries[0].Rank, ShouldEqual, 1)
				So(board.Entries[0].Rating, ShouldBeGreaterThan, board.Entries[2].Rating)
			})

			Convey("Then staleness is visible, not an error", func() {
				So(board.TotalComparisons, ShouldEqual, 6)
				So(board.PendingComparisons, ShouldBeGreaterThanOrEqualTo, 0)
				So(board.LastUpdatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And a second read within the TTL is served from cache", func() {
				again, err := svc.Leaderboard(ctx, "Queen", 10)
				So(err, ShouldBeNil)
				So(again.LastUpdatedAt.Equal(board.LastUpdatedAt), ShouldBeTrue)
			})
		})

		Convey("When an unknown artist is read", func() {
			board, err := svc.Leaderboard(ctx, "Nobody", 10)

			Convey("Then the board is empty, not an error", func() {
				So(err, ShouldBeNil)
				So(board.Entries, ShouldBeEmpty)
				So(board.TotalComparisons, ShouldEqual, 0)
				So(board.LastUpdatedAt.IsZero(), ShouldBeTrue)
			})
		})
	})
}

func TestLeaderboardTieRanks(t *testing.T) {
	Convey("Given songs with identical ratings", t, func() {
		svc, store := newService(t)
		ctx := context.Background()
		So(store.UpsertSongs(ctx, catalog()), ShouldBeNil)
		So(store.BulkUpdateGlobalRatings(ctx, []repository.GlobalUpdate{
			{SongID: "a", Strength: 2.0, Rating: 1620},
			{SongID: "b", Strength: 2.0, Rating: 1620},
			{SongID: "c", Strength: 0.25, Rating: 1260},
		}), ShouldBeNil)

		board, err := svc.Leaderboard(ctx, "Queen", 10)
		So(err, ShouldBeNil)

		Convey("Then tied songs share a rank and the next rank skips", func() {
			So(board.Entries[0].Rank, ShouldEqual, 1)
			So(board.Entries[1].Rank, ShouldEqual, 1)
			So(board.Entries[2].Rank, ShouldEqual, 3)
		})
	})
}

func TestApplyMerge(t *testing.T) {
	Convey("Given a confirmed duplicate pair", t, func() {
		svc, store := newService(t)
		ctx := context.Background()
		info, err := svc.CreateSession(ctx, "u1", "Queen", catalog())
		So(err, ShouldBeNil)
		_, err = svc.RecordDuel(ctx, info.SessionID, "a", "b", "a", false, 0)
		So(err, ShouldBeNil)

		Convey("When the merge is applied", func() {
			So(svc.ApplyMerge(ctx, "a", "b"), ShouldBeNil)

			Convey("Then the duplicate is gone from the store", func() {
				_, err := store.GetSong(ctx, "b")
				So(errors.Is(err, repository.ErrSongNotFound), ShouldBeTrue)
			})

			Convey("Then the open session no longer lists the removed song", func() {
				sess, err := svc.Session(ctx, info.SessionID)
				So(err, ShouldBeNil)
				ids := make([]string, len(sess.Songs))
				for i, ss := range sess.Songs {
					ids[i] = ss.SongID
				}
				So(ids, ShouldResemble, []string{"a", "c"})
			})

			Convey("Then duels on the removed song are rejected", func() {
				_, err := svc.RecordDuel(ctx, info.SessionID, "b", "c", "b", false, 0)
				So(errors.Is(err, service.ErrSongNotInSession), ShouldBeTrue)
			})

			Convey("Then duels on the kept song still feed the global ranking", func() {
				pairs := [][2]string{{"a", "c"}, {"c", "a"}, {"a", "c"}, {"c", "a"}, {"a", "c"}}
				for _, p := range pairs {
					_, err := svc.RecordDuel(ctx, info.SessionID, p[0], p[1], "a", false, 2000)
					So(err, ShouldBeNil)
				}

				So(eventually(func() bool {
					s, err := store.GetSong(ctx, "a")
					return err == nil && s.GlobalVoteCount > 0
				}), ShouldBeTrue)

				st, err := store.AggregateState(ctx, model.ArtistKey("Queen"))
				So(err, ShouldBeNil)
				So(st.ProcessedDuelCount, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestAggregateQueueSizeOption(t *testing.T) {
	Convey("Given a service with a single-slot aggregation queue", t, func() {
		svc, store := newService(t, service.WithAggregateQueueSize(1))
		ctx := context.Background()
		info, err := svc.CreateSession(ctx, "u1", "Queen", catalog())
		So(err, ShouldBeNil)

		pairs := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}, {"a", "b"}, {"a", "c"}}
		for _, p := range pairs {
			_, err := svc.RecordDuel(ctx, info.SessionID, p[0], p[1], p[0], false, 2000)
			So(err, ShouldBeNil)
		}

		Convey("Then aggregation still flows through the bounded queue", func() {
			So(eventually(func() bool {
				st, _ := store.AggregateState(ctx, model.ArtistKey("Queen"))
				return st.ProcessedDuelCount > 0
			}), ShouldBeTrue)
		})
	})
}

func TestNotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		_, err := svc.CreateSession(context.Background(), "u1", "Queen", catalog())
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})
}
