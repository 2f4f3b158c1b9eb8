package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/geo"
	"github.com/Kerhoff/CheckinBoT/internal/models"
)

// Client talks to the public check-in API. It implements EventSource and
// Submitter.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the API rooted at baseURL. A nil hc uses a
// client with a 30 second timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) eventURL(eventID int64) string {
	return fmt.Sprintf("%s/api/public/events/%d", c.baseURL, eventID)
}

// GetEvent fetches the public view of an event.
func (c *Client) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.eventURL(eventID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrEventNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}

	var event models.Event
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return &event, nil
}

// Submit posts a check-in. Any 4xx answer becomes a *RejectedError holding
// the server's message.
func (c *Client) Submit(ctx context.Context, s Submission) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventURL(s.EventID)+"/checkin", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit check-in: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &RejectedError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}

// StaticLocator always reports the same position, or the same failure.
type StaticLocator struct {
	Point geo.Point
	Err   error
}

func (l StaticLocator) Locate(ctx context.Context) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, &LocationError{Kind: LocationTimeout, Err: err}
	}
	if l.Err != nil {
		return geo.Point{}, l.Err
	}
	return l.Point, nil
}
