package convergence_test

import (
	"testing"

	"github.com/okian/duet/internal/domain/convergence"
	. "github.com/smartystreets/goconvey/convey"
)

func TestQuantity(t *testing.T) {
	Convey("Given duel and item counts", t, func() {
		Convey("Then coverage scales with duels per item", func() {
			So(convergence.Quantity(0, 10), ShouldEqual, 0)
			So(convergence.Quantity(5, 10), ShouldAlmostEqual, 0.2, 1e-9)
			So(convergence.Quantity(25, 10), ShouldAlmostEqual, 1.0, 1e-9)
		})
		Convey("Then coverage caps at 1", func() {
			So(convergence.Quantity(1000, 10), ShouldEqual, 1.0)
		})
		Convey("Then zero items never divides by zero", func() {
			So(convergence.Quantity(10, 0), ShouldEqual, 0)
		})
	})
}

func TestStability(t *testing.T) {
	Convey("Given successive top lists", t, func() {
		Convey("When there is no previous list", func() {
			So(convergence.Stability(nil, []string{"a", "b"}), ShouldEqual, 0)
		})

		Convey("When the list is unchanged", func() {
			top := []string{"a", "b", "c", "d", "e"}
			So(convergence.Stability(top, top), ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("When the list is entirely different", func() {
			So(convergence.Stability([]string{"a", "b"}, []string{"x", "y"}), ShouldEqual, 0)
		})

		Convey("When membership holds but positions swap", func() {
			prev := []string{"a", "b"}
			cur := []string{"b", "a"}
			score := convergence.Stability(prev, cur)

			Convey("Then membership credit remains without position credit", func() {
				So(score, ShouldAlmostEqual, 0.4, 1e-9)
			})
		})

		Convey("When only the head position holds", func() {
			prev := []string{"a", "b", "c"}
			cur := []string{"a", "c", "b"}
			score := convergence.Stability(prev, cur)

			Convey("Then the score rewards the held head more than a held tail would", func() {
				So(score, ShouldBeGreaterThan, 0.4)
				So(score, ShouldBeLessThan, 1.0)
			})
		})
	})
}

func TestTopIDs(t *testing.T) {
	Convey("Given a strength map", t, func() {
		strengths := map[string]float64{"a": 3, "b": 1, "c": 2, "d": 2}

		Convey("Then IDs come back strongest first with deterministic ties", func() {
			So(convergence.TopIDs(strengths, 10), ShouldResemble, []string{"a", "c", "d", "b"})
		})

		Convey("Then the list is truncated at k", func() {
			So(convergence.TopIDs(strengths, 2), ShouldResemble, []string{"a", "c"})
		})
	})
}

func TestScoreAndReady(t *testing.T) {
	Convey("Given a session with full coverage and a stable top list", t, func() {
		top := []string{"a", "b", "c"}
		score := convergence.Score(100, 10, top, top)

		Convey("Then the blended score is 1 and the session is ready", func() {
			So(score, ShouldAlmostEqual, 1.0, 1e-9)
			So(convergence.Ready(score), ShouldBeTrue)
		})
	})

	Convey("Given a fresh session with no history", t, func() {
		score := convergence.Score(5, 10, nil, []string{"a", "b"})

		Convey("Then quantity alone cannot make it ready", func() {
			So(score, ShouldAlmostEqual, 0.1, 1e-9)
			So(convergence.Ready(score), ShouldBeFalse)
		})
	})

	Convey("Given the readiness boundary", t, func() {
		So(convergence.Ready(0.9), ShouldBeTrue)
		So(convergence.Ready(0.8999), ShouldBeFalse)
	})
}
