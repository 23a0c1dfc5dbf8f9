package nominatim

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southlink/geosync/internal/resilience"
)

// testClient returns a client pointed at srv with pacing effectively off.
func testClient(srv *httptest.Server, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(srv.URL),
		WithMinInterval(time.Nanosecond),
	}
	return NewClient(append(base, opts...)...)
}

func TestSearch_Match(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "nz", r.URL.Query().Get("countrycodes"))
		_, _ = io.WriteString(w, `[{"lat":"-36.8485","lon":"174.7633","display_name":"Queen Street, Auckland"}]`)
	}))
	defer srv.Close()

	c := testClient(srv, WithUserAgent("geosync-test/1.0"))
	res, err := c.Search(context.Background(), "12 Queen Street, Auckland")

	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, -36.8485, res.Lat)
	assert.Equal(t, 174.7633, res.Lon)
	assert.Equal(t, "12 Queen Street, Auckland", gotQuery)
	assert.Equal(t, "geosync-test/1.0", gotUA)
}

func TestSearch_EmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	res, err := testClient(srv).Search(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestSearch_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv).Search(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), "503 is a transient failure")
}

func TestSearch_ForbiddenIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv).Search(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestSearch_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"not":"an array"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv).Search(context.Background(), "x")
	require.Error(t, err)
}

func TestSearch_UnparseableCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat":"not-a-number","lon":"174.7633"}]`)
	}))
	defer srv.Close()

	_, err := testClient(srv).Search(context.Background(), "x")
	require.Error(t, err)
}

func TestSearch_PacesConsecutiveRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithMinInterval(50*time.Millisecond))

	start := time.Now()
	_, err := c.Search(context.Background(), "first")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "second")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond,
		"second request must wait out the pacing interval")
}

func TestSearch_PacingWaitRespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithMinInterval(time.Hour))

	_, err := c.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "second")
	require.Error(t, err)
}
