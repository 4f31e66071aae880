package main

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

	"memelend/services/lendingd/server"
)

// APIError is a non-2xx response from lendingd.
type APIError struct {
	Status  int
	Problem server.Problem
}

func (e *APIError) Error() string {
	msg := e.Problem.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Problem.Code != 0 {
		return fmt.Sprintf("%s (status %d, code %d)", msg, e.Status, e.Problem.Code)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.Status)
}

// client talks JSON to the lendingd HTTP API.
type client struct {
	base  string
	token func() (string, error)
	http  *http.Client
}

func newClient(base string, token func() (string, error)) *client {
	return &client{
		base:  strings.TrimRight(strings.TrimSpace(base), "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends body as JSON and decodes the response into out. authed requests
// carry the bearer token.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body any, authed bool, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		tok, err := c.token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, &apiErr.Problem)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
