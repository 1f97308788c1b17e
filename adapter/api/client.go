package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/bookline/internal/actionqueue"
	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
)

// StatusError is a non-2xx answer the client could not map to a domain
// error. It is transient from the synchronizer's point of view.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bookline api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Client calls the bookline API. It applies queued provider actions and
// probes reachability for the provider agent.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Apply sends a queued action. 409 maps to ErrInvalidTransition and 404 to
// ErrBookingNotFound; transport failures and 5xx answers are transient.
func (c *Client) Apply(ctx context.Context, a actionqueue.QueuedAction) error {
	path := fmt.Sprintf("/api/v1/bookings/%s/%s", a.BookingID, a.Action)
	return c.post(ctx, path, DecisionRequest{ProviderID: a.ProviderID.String(), Reason: a.Reason})
}

// Ping checks that the API answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sharedDomain.Unavailable("ping bookline api", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return &StatusError{Status: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sharedDomain.Unavailable("call bookline api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeError(resp)
}

func decodeError(resp *http.Response) error {
	var body ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)

	switch resp.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", bookingDomain.ErrInvalidTransition, body.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", bookingDomain.ErrBookingNotFound, body.Message)
	default:
		return &StatusError{Status: resp.StatusCode, Message: body.Message}
	}
}

var (
	_ actionqueue.Gateway = (*Client)(nil)
	_ actionqueue.Pinger  = (*Client)(nil)
)
