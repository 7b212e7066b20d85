package api

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

func (c *Client) ListChildren(ctx context.Context) ([]Child, error) {
	var out []Child
	if err := c.do(ctx, http.MethodGet, "api/v1/patients/children", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	if err := c.do(ctx, http.MethodGet, "api/v1/therapy/dashboard/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SessionHistory(ctx context.Context) ([]SessionHistoryEntry, error) {
	var out []SessionHistoryEntry
	if err := c.do(ctx, http.MethodGet, "api/v1/therapy/sessions/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Progress(ctx context.Context, childID ID) (*ChildProgress, error) {
	var out ChildProgress
	path := fmt.Sprintf("api/v1/therapy/children/%s/progress", childID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard bundles the three independent dashboard reads.
type Dashboard struct {
	Stats    *DashboardStats
	History  []SessionHistoryEntry
	Progress *ChildProgress
}

// FetchDashboard pulls stats, history and (when a child is selected)
// per-child progress concurrently. One failing read fails the whole fetch.
func (c *Client) FetchDashboard(ctx context.Context, childID ID) (*Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		d.Stats = s
		return nil
	})
	g.Go(func() error {
		h, err := c.SessionHistory(ctx)
		if err != nil {
			return err
		}
		d.History = h
		return nil
	})
	if childID != "" {
		g.Go(func() error {
			p, err := c.Progress(ctx, childID)
			if err != nil {
				return err
			}
			d.Progress = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}
