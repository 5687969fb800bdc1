package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/court-scheduler/internal/domain/booking"
)

// Credentials authenticate against the portal.
type Credentials struct {
	Username string
	Password string
}

// Client reads a requester's active reservations from the portal's HTTP API:
//
//	GET {base}/v1/occupancy?group=tennis
//	{"group":"tennis","courts":[{"court":1,"active":2},{"court":2,"active":0}]}
type Client struct {
	hc    *http.Client
	base  string
	creds Credentials
}

func NewClient(baseURL string, creds Credentials) *Client {
	return &Client{
		hc:    &http.Client{Timeout: 10 * time.Second},
		base:  strings.TrimRight(baseURL, "/"),
		creds: creds,
	}
}

type occupancyResponse struct {
	Group  string `json:"group"`
	Courts []struct {
		Court  int `json:"court"`
		Active int `json:"active"`
	} `json:"courts"`
	Message string `json:"message,omitempty"`
}

// Occupancy implements booking.Directory. Every failure wraps
// booking.ErrDirectoryUnavailable.
func (c *Client) Occupancy(ctx context.Context, group string) (booking.Occupancy, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/v1/occupancy", map[string]string{"group": group})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", booking.ErrDirectoryUnavailable, err)
	}

	var r occupancyResponse
	if status >= 400 {
		_ = json.Unmarshal(body, &r)
		if r.Message != "" {
			return nil, fmt.Errorf("%w: %s (status=%d)", booking.ErrDirectoryUnavailable, r.Message, status)
		}
		return nil, fmt.Errorf("%w: status=%d", booking.ErrDirectoryUnavailable, status)
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: decode occupancy: %w", booking.ErrDirectoryUnavailable, err)
	}

	occ := make(booking.Occupancy, len(r.Courts))
	for _, ct := range r.Courts {
		if ct.Active < 0 {
			return nil, fmt.Errorf("%w: negative count for court %d", booking.ErrDirectoryUnavailable, ct.Court)
		}
		occ[booking.CourtID(ct.Court)] += ct.Active
	}
	return occ, nil
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(nil))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Add("accept", "application/json")
	if c.creds.Username != "" {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}
	if query != nil {
		q := url.Values{}
		for k, v := range query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
