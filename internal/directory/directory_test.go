package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-scheduler/internal/domain/booking"
)

func TestClientOccupancy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/occupancy", r.URL.Path)
		assert.Equal(t, "tennis", r.URL.Query().Get("group"))
		u, p, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "flat-12", u)
		assert.Equal(t, "secret", p)
		_, _ = w.Write([]byte(`{"group":"tennis","courts":[{"court":1,"active":2},{"court":2,"active":1},{"court":3,"active":0}]}`))
	}))
	defer srv.Close()

	occ, err := NewClient(srv.URL+"/", Credentials{Username: "flat-12", Password: "secret"}).Occupancy(context.Background(), "tennis")
	require.NoError(t, err)
	assert.Equal(t, booking.Occupancy{1: 2, 2: 1, 3: 0}, occ)
}

func TestClientOccupancyErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		msg    string
	}{
		{"server error with message", http.StatusBadGateway, `{"message":"portal down"}`, "portal down"},
		{"unauthorised", http.StatusUnauthorized, ``, "status=401"},
		{"bad json", http.StatusOK, `{"courts":`, "decode occupancy"},
		{"negative count", http.StatusOK, `{"courts":[{"court":1,"active":-1}]}`, "negative count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, Credentials{}).Occupancy(context.Background(), "tennis")
			require.Error(t, err)
			assert.ErrorIs(t, err, booking.ErrDirectoryUnavailable)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, Credentials{}).Occupancy(context.Background(), "tennis")
	assert.ErrorIs(t, err, booking.ErrDirectoryUnavailable)
}

func TestStaticReturnsCopy(t *testing.T) {
	s := Static{1: 1}
	occ, err := s.Occupancy(context.Background(), "any")
	require.NoError(t, err)
	occ[1] = 5
	assert.Equal(t, 1, s[1])
}

type countingDirectory struct {
	calls int
	err   error
}

func (d *countingDirectory) Occupancy(context.Context, string) (booking.Occupancy, error) {
	d.calls++
	return booking.Occupancy{1: d.calls}, d.err
}

func TestCached(t *testing.T) {
	next := &countingDirectory{}
	c := NewCached(next, time.Hour)

	a, err := c.Occupancy(context.Background(), "tennis")
	require.NoError(t, err)
	b, err := c.Occupancy(context.Background(), "tennis")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, next.calls)

	_, _ = c.Occupancy(context.Background(), "squash")
	assert.Equal(t, 2, next.calls)

	c.Invalidate("tennis")
	a, _ = c.Occupancy(context.Background(), "tennis")
	assert.Equal(t, booking.Occupancy{1: 3}, a)
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	next := &countingDirectory{err: errors.New("down")}
	c := NewCached(next, time.Hour)

	_, err := c.Occupancy(context.Background(), "tennis")
	require.Error(t, err)
	next.err = nil
	_, err = c.Occupancy(context.Background(), "tennis")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}
