package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/court-scheduler/internal/domain/booking"
)

// Agent drives targets through an automation agent's HTTP API. The agent owns
// the actual surfaces (devices or browser sessions); this side only tells it
// what to do with each one.
type Agent struct {
	hc    *http.Client
	base  string
	token string
}

func NewAgent(baseURL, token string) *Agent {
	return &Agent{
		hc:    &http.Client{Timeout: 60 * time.Second},
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
	}
}

var errAgent = errors.New("agent request failed")

type agentError struct {
	Message string `json:"message"`
}

func (a *Agent) Open(ctx context.Context, targets int) error {
	_, err := a.call(ctx, http.MethodPost, "/v1/session", map[string]int{"targets": targets})
	return err
}

func (a *Agent) Close(ctx context.Context) error {
	_, err := a.call(ctx, http.MethodDelete, "/v1/session", nil)
	return err
}

func (a *Agent) Acquire(ctx context.Context, spec booking.TargetSpec) (booking.Target, error) {
	body, err := a.call(ctx, http.MethodPost, "/v1/targets", map[string]any{"index": spec.Index, "name": spec.Name})
	if err != nil {
		return booking.Target{}, err
	}
	var r struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return booking.Target{}, fmt.Errorf("%w: decode target: %w", errAgent, err)
	}
	if r.ID == "" {
		return booking.Target{}, fmt.Errorf("%w: agent returned no target id", errAgent)
	}
	name := r.Name
	if name == "" {
		name = spec.Name
	}
	return booking.Target{Index: spec.Index, Name: name, Handle: r.ID}, nil
}

func (a *Agent) Navigate(ctx context.Context, t booking.Target, r booking.Request) error {
	_, err := a.call(ctx, http.MethodPost, a.targetPath(t, "navigate"), map[string]int{
		"court":     int(r.Court),
		"slot_hour": r.SlotHour,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", booking.ErrNavigationFailed, r, err)
	}
	return nil
}

func (a *Agent) Submit(ctx context.Context, t booking.Target) error {
	if _, err := a.call(ctx, http.MethodPost, a.targetPath(t, "submit"), nil); err != nil {
		return fmt.Errorf("%w: %w", booking.ErrSubmitFailed, err)
	}
	return nil
}

func (a *Agent) Release(ctx context.Context, t booking.Target) error {
	_, err := a.call(ctx, http.MethodDelete, a.targetPath(t, ""), nil)
	return err
}

func (a *Agent) targetPath(t booking.Target, action string) string {
	p := "/v1/targets/" + url.PathEscape(t.Handle)
	if action != "" {
		p += "/" + action
	}
	return p
}

// call sends payload as JSON and returns the response body. 404 maps to
// booking.ErrNotFound.
func (a *Agent) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var rd io.Reader = http.NoBody
	if payload != nil {
		jb, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(jb)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Add("accept", "application/json")
	if payload != nil {
		req.Header.Add("content-type", "application/json")
	}
	if a.token != "" {
		req.Header.Add("authorization", "Bearer "+a.token)
	}

	res, err := a.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", booking.ErrNotFound, method, path)
	case res.StatusCode >= 400:
		var e agentError
		_ = json.Unmarshal(b, &e)
		if e.Message != "" {
			return nil, fmt.Errorf("%w: %s (status=%d)", errAgent, e.Message, res.StatusCode)
		}
		return nil, fmt.Errorf("%w: status=%d", errAgent, res.StatusCode)
	}
	return b, nil
}
