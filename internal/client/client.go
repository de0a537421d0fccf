// Package client is a small HTTP client for the booking API, used by
// cinemactl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// APIError is a non-2xx reply.  Seat conflicts carry the contested
// seats, which hold.Session uses to trim a selection.
type APIError struct {
	Status  int
	Code    string
	Message string
	Seats   []string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

// ConflictingSeats returns the contested seats of a 409 seat conflict.
// Unparseable entries are skipped.
func (e *APIError) ConflictingSeats() []model.Seat {
	out := make([]model.Seat, 0, len(e.Seats))
	for _, raw := range e.Seats {
		if s, err := model.ParseSeat(raw); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// IsConflict reports whether the error is a seat conflict.
func (e *APIError) IsConflict() bool { return e.Status == http.StatusConflict && e.Code == "seat_conflict" }

// Client talks to one API base URL.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 10s timeout.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// New returns a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return err
	}
	if res.StatusCode/100 != 2 {
		var e handler.ErrorResponse
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = http.StatusText(res.StatusCode)
		}
		return &APIError{Status: res.StatusCode, Code: e.Error, Message: e.Message, Seats: e.Seats}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func screeningPath(id uint64, suffix string) string {
	return "/screenings/" + strconv.FormatUint(id, 10) + suffix
}

// Screenings lists upcoming screenings.
func (c *Client) Screenings(ctx context.Context, limit int) ([]handler.ScreeningResponse, error) {
	path := "/screenings"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out []handler.ScreeningResponse
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// Screening fetches one screening.
func (c *Client) Screening(ctx context.Context, id uint64) (*handler.ScreeningResponse, error) {
	var out handler.ScreeningResponse
	if err := c.do(ctx, http.MethodGet, screeningPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OccupiedSeats fetches the occupancy snapshot.
func (c *Client) OccupiedSeats(ctx context.Context, id uint64) (model.SeatSet, error) {
	var out handler.SeatsResponse
	if err := c.do(ctx, http.MethodGet, screeningPath(id, "/seats"), nil, &out); err != nil {
		return nil, err
	}
	return model.ParseSeatSet(out.OccupiedSeats)
}

// SeatMap fetches the full seat map.
func (c *Client) SeatMap(ctx context.Context, id uint64) (*handler.SeatMapResponse, error) {
	var out handler.SeatMapResponse
	if err := c.do(ctx, http.MethodGet, screeningPath(id, "/seatmap"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Book buys seats for the screening.
func (c *Client) Book(ctx context.Context, screeningID uint64, seats []string) (*handler.BookResponse, error) {
	var out handler.BookResponse
	req := handler.BookRequest{ScreeningID: screeningID, Seats: seats}
	if err := c.do(ctx, http.MethodPost, "/tickets/book", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyTickets lists the caller's active tickets.
func (c *Client) MyTickets(ctx context.Context) ([]handler.TicketResponse, error) {
	var out handler.TicketsResponse
	if err := c.do(ctx, http.MethodGet, "/tickets/my", nil, &out); err != nil {
		return nil, err
	}
	return out.Tickets, nil
}

// Cancel cancels one of the caller's tickets.
func (c *Client) Cancel(ctx context.Context, ticketID uint64) (*handler.CancelResponse, error) {
	var out handler.CancelResponse
	if err := c.do(ctx, http.MethodDelete, "/tickets/"+strconv.FormatUint(ticketID, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
