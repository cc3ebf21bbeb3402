package provider_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"golang.org/x/time/rate"

	"github.com/okian/duet/internal/adapters/mq/serializer"
	"github.com/okian/duet/internal/adapters/provider"
	"github.com/okian/duet/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const testBase = "https://catalog.test"

func newTestClient(t *testing.T) (*provider.Client, *serializer.Serializer) {
	t.Helper()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)

	ser := serializer.New(
		serializer.WithRateLimit(rate.Inf, 1),
		serializer.WithBackoffIntervals(time.Millisecond, 5*time.Millisecond),
	)
	ser.Start()
	t.Cleanup(ser.Stop)

	c := provider.NewClient(ser,
		provider.WithBaseURL(testBase),
		provider.WithToken("tok"),
		provider.WithHTTPClient(hc),
	)
	return c, ser
}

func TestSearchTracks(t *testing.T) {
	Convey("Given a catalog with matching tracks", t, func() {
		c, _ := newTestClient(t)
		var gotAuth string
		httpmock.RegisterResponder(http.MethodGet, testBase+"/v1/search",
			func(req *http.Request) (*http.Response, error) {
				gotAuth = req.Header.Get("Authorization")
				return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
					"tracks": []map[string]string{
						{"id": "t1", "title": "Song", "artist": "Queen", "album": "Album", "isrc": "GBUM71029604"},
					},
				})
			})

		Convey("When searching", func() {
			hits, err := c.SearchTracks(context.Background(), "Queen", "Song")

			So(err, ShouldBeNil)
			So(hits, ShouldHaveLength, 1)
			So(hits[0].ISRC, ShouldEqual, "GBUM71029604")
			So(gotAuth, ShouldEqual, "Bearer tok")
		})
	})

	Convey("Given a catalog returning garbage", t, func() {
		c, _ := newTestClient(t)
		httpmock.RegisterResponder(http.MethodGet, testBase+"/v1/search",
			httpmock.NewStringResponder(http.StatusOK, "not json"))

		_, err := c.SearchTracks(context.Background(), "Queen", "Song")
		So(errors.Is(err, provider.ErrBadResponse), ShouldBeTrue)
	})
}

func TestTrackByISRC(t *testing.T) {
	Convey("Given the catalog", t, func() {
		c, _ := newTestClient(t)

		Convey("When the code resolves", func() {
			httpmock.RegisterResponder(http.MethodGet, testBase+"/v1/tracks/isrc/GBUM71029604",
				httpmock.NewStringResponder(http.StatusOK, `{"id":"t1","title":"Song","isrc":"GBUM71029604"}`))

			tr, err := c.TrackByISRC(context.Background(), "GBUM71029604")
			So(err, ShouldBeNil)
			So(tr.ID, ShouldEqual, "t1")
		})

		Convey("When the code resolves only after propagation", func() {
			calls := 0
			httpmock.RegisterResponder(http.MethodGet, testBase+"/v1/tracks/isrc/FRESH0000001",
				func(req *http.Request) (*http.Response, error) {
					calls++
					if calls == 1 {
						return httpmock.NewStringResponse(http.StatusNotFound, ""), nil
					}
					return httpmock.NewStringResponse(http.StatusOK, `{"id":"t2","isrc":"FRESH0000001"}`), nil
				})

			tr, err := c.TrackByISRC(context.Background(), "FRESH0000001")

			Convey("Then the 404 was retried through", func() {
				So(err, ShouldBeNil)
				So(tr.ID, ShouldEqual, "t2")
				So(calls, ShouldEqual, 2)
			})
		})

		Convey("When the code never resolves", func() {
			httpmock.RegisterResponder(http.MethodGet, testBase+"/v1/tracks/isrc/GONE00000001",
				httpmock.NewStringResponder(http.StatusNotFound, ""))

			_, err := c.TrackByISRC(context.Background(), "GONE00000001")
			So(errors.Is(err, provider.ErrTrackNotFound), ShouldBeTrue)
		})
	})
}

func TestUnauthorizedSurfaces(t *testing.T) {
	Convey("Given revoked credentials", t, func() {
		c, _ := newTestClient(t)
		httpmock.RegisterResponder(http.MethodGet, testBase+"/v1/search",
			httpmock.NewStringResponder(http.StatusUnauthorized, ""))

		_, err := c.SearchTracks(context.Background(), "Queen", "Song")

		Convey("Then the permanent auth error comes through unwrapped kinds intact", func() {
			So(errors.Is(err, serializer.ErrUnauthorized), ShouldBeTrue)
		})
	})
}

func TestEnrichSongs(t *testing.T) {
	Convey("Given songs missing identity fields", t, func() {
		c, _ := newTestClient(t)
		httpmock.RegisterResponder(http.MethodGet, testBase+"/v1/search",
			func(req *http.Request) (*http.Response, error) {
				if req.URL.Query().Get("title") == "Known" {
					return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
						"tracks": []map[string]string{
							{"id": "t1", "title": "Known", "isrc": "ISRC00000001", "album": "LP"},
						},
					})
				}
				return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"tracks": []map[string]string{}})
			})

		songs := []model.Song{
			{ID: "s1", Title: "Known", Artist: "Queen"},
			{ID: "s2", Title: "Unknown", Artist: "Queen"},
			{ID: "s3", Title: "Tagged", Artist: "Queen", ISRC: "KEEP00000001"},
		}

		out := c.EnrichSongs(context.Background(), songs)

		Convey("Then resolvable songs gain their code and album", func() {
			So(out[0].ISRC, ShouldEqual, "ISRC00000001")
			So(out[0].Album, ShouldEqual, "LP")
		})
		Convey("Then unresolvable songs pass through unchanged", func() {
			So(out[1].ISRC, ShouldBeEmpty)
		})
		Convey("Then already-tagged songs are not re-queried", func() {
			So(out[2].ISRC, ShouldEqual, "KEEP00000001")
		})
	})
}
