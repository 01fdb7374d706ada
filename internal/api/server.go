// Package api serves the HTTP command surface and a websocket status stream.
package api

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"uav-control-manager/internal/command"
	"uav-control-manager/internal/logger"
	"uav-control-manager/internal/types"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
	clientQueueSize   = 4
)

// Controller is the control manager as seen by the HTTP surface.
type Controller interface {
	command.Surface
	Status() types.Status
	Constraints() (requested, sanitized types.Constraints)
}

// EventSource reads back the flight journal.
type EventSource interface {
	Recent(ctx context.Context, n int) ([]types.Event, error)
}

// statusView is the status plus human-readable ages.
type statusView struct {
	types.Status
	StateAgeText   string `json:"state_age_text"`
	LastSwitchText string `json:"last_switch_text"`
}

func newStatusView(st types.Status) statusView {
	v := statusView{Status: st, StateAgeText: "never", LastSwitchText: "never"}
	if st.HaveState {
		v.StateAgeText = humanize.RelTime(st.Stamp.Add(-st.StateAge), st.Stamp, "ago", "from now")
	}
	if !st.LastSwitchAt.IsZero() {
		v.LastSwitchText = humanize.RelTime(st.LastSwitchAt, st.Stamp, "ago", "from now")
	}
	return v
}

type Server struct {
	app     *fiber.App
	ctrl    Controller
	events  EventSource
	logger  *logger.Logger
	started time.Time

	clientsMu sync.Mutex
	clients   map[chan statusView]struct{}
}

// NewServer builds the fiber app and registers all routes. events may be nil
// when the journal is disabled.
func NewServer(ctrl Controller, events EventSource, l *logger.Logger, accessLog bool) *Server {
	s := &Server{
		ctrl:    ctrl,
		events:  events,
		logger:  l,
		started: time.Now(),
		clients: make(map[chan statusView]struct{}),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "control-manager",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	if accessLog {
		s.app.Use(fiberlogger.New())
	}
	s.app.Use(recover.New())

	s.app.Get("/health", s.handleHealth)

	v1 := s.app.Group("/api/v1")
	v1.Get("/status", s.handleStatus)
	v1.Get("/constraints", s.handleConstraints)
	v1.Get("/operations", s.handleOperations)
	v1.Get("/events", s.handleEvents)
	v1.Post("/command/:op", s.handleCommand)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/status", websocket.New(s.handleStatusStream))

	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Infof("HTTP surface listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsMu.Lock()
	for ch := range s.clients {
		close(ch)
		delete(s.clients, ch)
	}
	s.clientsMu.Unlock()
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	st := s.ctrl.Status()
	return c.JSON(fiber.Map{
		"status":     "healthy",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"have_state": st.HaveState,
		"motors_on":  st.MotorsOn,
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(newStatusView(s.ctrl.Status()))
}

func (s *Server) handleConstraints(c *fiber.Ctx) error {
	requested, sanitized := s.ctrl.Constraints()
	return c.JSON(fiber.Map{
		"requested": requested,
		"sanitized": sanitized,
	})
}

func (s *Server) handleOperations(c *fiber.Ctx) error {
	return c.JSON(command.Operations())
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	if s.events == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "journal is disabled")
	}
	limit := defaultEventLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := s.events.Recent(c.UserContext(), limit)
	if err != nil {
		s.logger.Errorf("Failed to read journal: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read journal")
	}
	if events == nil {
		events = []types.Event{}
	}
	return c.JSON(events)
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	op := c.Params("op")
	s.logger.Debugf("HTTP command %s", op)

	out, err := command.Dispatch(s.ctrl, op, c.Body())
	switch {
	case errors.Is(err, command.ErrUnknownOperation):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, command.ErrBadPayload):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(out)
}

// PublishStatus hands the status to every connected websocket client. Slow
// clients miss updates instead of stalling the publisher.
func (s *Server) PublishStatus(st types.Status) error {
	v := newStatusView(st)

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- v:
		default:
		}
	}
	return nil
}

func (s *Server) subscribe() chan statusView {
	ch := make(chan statusView, clientQueueSize)
	s.clientsMu.Lock()
	s.clients[ch] = struct{}{}
	s.clientsMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan statusView) {
	s.clientsMu.Lock()
	if _, ok := s.clients[ch]; ok {
		delete(s.clients, ch)
		close(ch)
	}
	s.clientsMu.Unlock()
}

func (s *Server) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) handleStatusStream(conn *websocket.Conn) {
	s.logger.Infof("Status websocket connected: %s", conn.RemoteAddr())
	ch := s.subscribe()
	defer s.unsubscribe(ch)

	// the reader only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			s.logger.Infof("Status websocket disconnected: %s", conn.RemoteAddr())
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(v); err != nil {
				s.logger.Infof("Status websocket write failed: %v", err)
				return
			}
		}
	}
}
