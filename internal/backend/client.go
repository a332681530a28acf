package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirinyoku/busdesk/internal/domain"
	"github.com/kirinyoku/busdesk/internal/observability"
)

const maxBodyBytes = 8 << 20

type Config struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	Location *time.Location
}

// Client talks to the platform REST API. It attaches the bearer token and
// normalises the several response shapes the platform uses.
type Client struct {
	base   string
	token  string
	http   *http.Client
	loc    *time.Location
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	const op = "backend.New"

	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid base url %q", op, cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:   strings.TrimRight(u.String(), "/"),
		token:  cfg.Token,
		http:   &http.Client{Timeout: cfg.Timeout},
		loc:    cfg.Location,
		logger: logger,
	}, nil
}

func (c *Client) GetBus(ctx context.Context, id int64) (*domain.Bus, error) {
	const op = "backend.GetBus"

	raw, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/api/buses/%d", id), nil)
	if err != nil {
		return nil, err
	}

	dto, ok := DecodeObject[busDTO](raw, "bus")
	if !ok || dto.ID == 0 {
		c.logger.Warn("unexpected bus response", "op", op, "bus_id", id)
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedResponse)
	}

	bus := dto.toDomain()
	return &bus, nil
}

func (c *Client) GetRoutes(ctx context.Context, busID int64) ([]domain.Route, error) {
	const op = "backend.GetRoutes"

	raw, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/api/routes/bus/%d", busID), nil)
	if err != nil {
		return nil, err
	}

	dtos, dropped, shape := DecodeList(raw, routeDTO.valid, "routes")
	c.logDecode(op, shape, dropped)

	routes := make([]domain.Route, 0, len(dtos))
	for _, d := range dtos {
		routes = append(routes, d.toDomain())
	}

	return routes, nil
}

func (c *Client) CreateRoute(ctx context.Context, p domain.RoutePayload) error {
	const op = "backend.CreateRoute"

	_, err := c.do(ctx, op, http.MethodPost, "/api/routes", newRouteBody(p))
	return err
}

func (c *Client) UpdateRoute(ctx context.Context, id int64, p domain.RoutePayload) error {
	const op = "backend.UpdateRoute"

	_, err := c.do(ctx, op, http.MethodPut, fmt.Sprintf("/api/routes/%d", id), newRouteBody(p))
	return err
}

func (c *Client) DeleteRoute(ctx context.Context, id int64) error {
	const op = "backend.DeleteRoute"

	_, err := c.do(ctx, op, http.MethodDelete, fmt.Sprintf("/api/routes/%d", id), nil)
	return err
}

func (c *Client) GetSchedulesByRoute(ctx context.Context, routeID int64) ([]domain.Schedule, error) {
	const op = "backend.GetSchedulesByRoute"

	raw, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/api/schedules/route/%d", routeID), nil)
	if err != nil {
		return nil, err
	}

	dtos, dropped, shape := DecodeList(raw, scheduleDTO.valid, "schedules")

	schedules := make([]domain.Schedule, 0, len(dtos))
	for _, d := range dtos {
		s, ok := d.toDomain(c.loc)
		if !ok {
			dropped++
			continue
		}
		if s.RouteID == 0 {
			s.RouteID = routeID
		}
		schedules = append(schedules, s)
	}
	c.logDecode(op, shape, dropped)

	return schedules, nil
}

func (c *Client) CreateSchedule(ctx context.Context, p domain.SchedulePayload) error {
	const op = "backend.CreateSchedule"

	_, err := c.do(ctx, op, http.MethodPost, "/api/schedules", scheduleBody(p))
	return err
}

func (c *Client) UpdateSchedule(ctx context.Context, id int64, p domain.SchedulePayload) error {
	const op = "backend.UpdateSchedule"

	_, err := c.do(ctx, op, http.MethodPut, fmt.Sprintf("/api/schedules/%d", id), scheduleBody(p))
	return err
}

func (c *Client) DeleteSchedule(ctx context.Context, id int64) error {
	const op = "backend.DeleteSchedule"

	_, err := c.do(ctx, op, http.MethodDelete, fmt.Sprintf("/api/schedules/%d", id), nil)
	return err
}

func (c *Client) GenerateSchedules(ctx context.Context, job domain.GenerationJob) error {
	const op = "backend.GenerateSchedules"

	_, err := c.do(ctx, op, http.MethodPost, "/api/schedules/generate", generateBody(job))
	return err
}

func (c *Client) GetAvailableSeats(ctx context.Context, scheduleID int64) ([]domain.Seat, error) {
	const op = "backend.GetAvailableSeats"

	raw, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/api/schedules/%d/seats", scheduleID), nil)
	if err != nil {
		return nil, err
	}

	dtos, dropped, shape := DecodeList(raw, seatDTO.valid, "seats")
	c.logDecode(op, shape, dropped)

	seats := make([]domain.Seat, 0, len(dtos))
	for _, d := range dtos {
		seats = append(seats, d.toDomain())
	}

	return seats, nil
}

func (c *Client) LockBooking(ctx context.Context, req domain.BookingRequest) error {
	const op = "backend.LockBooking"

	body := bookingBody{
		ScheduleID:  req.ScheduleID,
		SeatIDs:     req.SeatIDs,
		SeatNumbers: req.SeatNumbers,
		SeatLabels:  req.SeatLabels,
		NationalID:  req.NationalID,
		Mobile:      req.Mobile,
		Email:       req.Email,
		Status:      string(req.Status),
	}

	_, err := c.do(ctx, op, http.MethodPost, "/api/bookings/lock", body)
	return err
}

// Count returns the size of a collection resource such as "hotels".
func (c *Client) Count(ctx context.Context, resource string) (int, error) {
	op := "backend.Count." + resource

	raw, err := c.do(ctx, op, http.MethodGet, "/api/"+resource, nil)
	if err != nil {
		return 0, err
	}

	n, shape := DecodeCount(raw, resource)
	if shape == ShapeUnknown {
		c.logger.Warn("unrecognised count response", "op", op)
	}

	return n, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	start := time.Now()
	defer func() {
		observability.BackendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.BackendRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		observability.BackendRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.BackendRequestsTotal.WithLabelValues(op, "status_error").Inc()
		return nil, &APIError{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	observability.BackendRequestsTotal.WithLabelValues(op, "ok").Inc()
	return raw, nil
}

func (c *Client) logDecode(op string, shape Shape, dropped int) {
	if shape == ShapeUnknown {
		c.logger.Warn("unrecognised list response", "op", op)
	}
	if dropped > 0 {
		observability.MalformedEntriesTotal.WithLabelValues(op).Add(float64(dropped))
		c.logger.Debug("dropped malformed entries", "op", op, "shape", shape.String(), "dropped", dropped)
	}
}

func errorMessage(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		return eb.Error
	}
	return ""
}
