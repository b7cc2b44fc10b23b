package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hazyhaar/leadscout/internal/safe"
	"github.com/hazyhaar/leadscout/message"
)

// Client sends requests to a remote NewHandler server.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

var _ message.Sender = (*Client)(nil)

// NewClient returns a Client for baseURL using http.DefaultClient.
func NewClient(baseURL, token string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Token: token, HTTP: http.DefaultClient}
}

// Send posts req and decodes the response. Refused requests come back as a
// Response with OK false, not as an error.
func (c *Client) Send(ctx context.Context, req message.Request) (message.Response, error) {
	body, err := message.Encode(req)
	if err != nil {
		return message.Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+PathMessages, bytes.NewReader(body))
	if err != nil {
		return message.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	res, err := c.client().Do(httpReq)
	if err != nil {
		return message.Response{}, fmt.Errorf("transport: %s: %w", req.Type(), err)
	}
	defer res.Body.Close()

	raw, err := safe.LimitedReadAll(res.Body, safe.MaxResponseBody)
	if err != nil {
		return message.Response{}, fmt.Errorf("transport: %s: %w", req.Type(), err)
	}
	var resp message.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return message.Response{}, fmt.Errorf("transport: %s: status %d: %w", req.Type(), res.StatusCode, err)
	}
	return resp, nil
}

// ExportCSV streams the leads CSV into w.
func (c *Client) ExportCSV(ctx context.Context, w io.Writer) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+PathLeadsCSV, nil)
	if err != nil {
		return err
	}
	c.authorize(httpReq)
	res, err := c.client().Do(httpReq)
	if err != nil {
		return fmt.Errorf("transport: export: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		var resp message.Response
		if json.NewDecoder(res.Body).Decode(&resp) == nil && resp.Code != "" {
			return resp.Err()
		}
		return fmt.Errorf("transport: export: status %d", res.StatusCode)
	}
	_, err = io.Copy(w, res.Body)
	return err
}

func (c *Client) authorize(r *http.Request) {
	if c.Token != "" {
		r.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func (c *Client) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
