package api

import (
	"context"
	"fmt"
	"net/http"
)

// Game endpoints. Paths mirror the platform's generic game API: every
// registered game plugin exposes the same start/next/submit/summary cycle
// under its game code.

func (c *Client) StartSession(ctx context.Context, game string, req StartSessionRequest) (*StartSessionResponse, error) {
	var out StartSessionResponse
	path := fmt.Sprintf("api/v1/therapy/games/%s/start/", game)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NextTrial(ctx context.Context, game string, sessionID ID) (*RawTrial, error) {
	var out RawTrial
	path := fmt.Sprintf("api/v1/therapy/games/%s/%s/next/", game, sessionID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitTrial(ctx context.Context, game string, trialID ID, req SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	path := fmt.Sprintf("api/v1/therapy/games/%s/trial/%s/submit/", game, trialID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SessionSummary(ctx context.Context, game string, sessionID ID) (*Summary, error) {
	var out Summary
	path := fmt.Sprintf("api/v1/therapy/games/%s/%s/summary/", game, sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndSession abandons an in-progress session.
func (c *Client) EndSession(ctx context.Context, sessionID ID) error {
	path := fmt.Sprintf("api/v1/therapy/sessions/%s/end", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
