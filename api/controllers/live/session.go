package live

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bookinga/bookinga-backend/internal/appointments"
	"github.com/bookinga/bookinga-backend/internal/foreground"
	"github.com/bookinga/bookinga-backend/internal/realtime"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/redis"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8 << 10
	sendBuffer     = 32
)

// Frame types written to the client.
const (
	FrameAppointments = "appointments"
	FrameNotification = "notification"
	FrameNavigate     = "navigate"
	FrameError        = "error"
)

// Message types read from the client.
const (
	MessageFilters           = "filters"
	MessageRefresh           = "refresh"
	MessageNotificationClick = "notificationClick"
)

// Frame is one server message.
type Frame struct {
	Type         string                `json:"type"`
	View         *appointments.ViewDTO `json:"view,omitempty"`
	Notification *models.PushPayload   `json:"notification,omitempty"`
	URL          string                `json:"url,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// ClientMessage is one client message.
type ClientMessage struct {
	Type    string            `json:"type"`
	Date    string            `json:"date,omitempty"`
	Status  string            `json:"status,omitempty"`
	Deleted string            `json:"deleted,omitempty"`
	From    string            `json:"from,omitempty"`
	To      string            `json:"to,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// ListenFunc subscribes to realtime channels until ctx ends.
type ListenFunc func(ctx context.Context, handle func(realtime.Event), channels ...string) error

// session is one dashboard connection: a Loader for the salon view and a foreground Handler for
// pushes addressed to the signed-in user.
type session struct {
	conn     *websocket.Conn
	salonID  string
	userID   string
	loc      *time.Location
	loader   *appointments.Loader
	fg       *foreground.Handler
	logg     *logger.Logger
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once

	// latest holds the newest appointments frame not yet written. Commits overwrite it so a slow
	// client skips intermediate views but always receives the current one.
	latestMu sync.Mutex
	latest   []byte
	wake     chan struct{}
}

func newSession(salonID, userID string, loc *time.Location, logg *logger.Logger) *session {
	return &session{
		salonID: salonID,
		userID:  userID,
		loc:     loc,
		logg:    logg,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// enqueue hands frame to the write pump. Appointments frames replace any unsent one; other frames
// are dropped when a slow client has filled the buffer.
func (s *session) enqueue(ctx context.Context, frame Frame) {
	body, err := json.Marshal(frame)
	if err != nil {
		s.logg.Error(ctx, "encode live frame", err)
		return
	}
	if frame.Type == FrameAppointments {
		s.setLatest(body)
		return
	}
	select {
	case <-s.done:
	case s.send <- body:
	default:
		s.logg.Warn(s.logg.WithField(ctx, "frame_type", frame.Type), "live send buffer full, dropping frame")
	}
}

func (s *session) setLatest(body []byte) {
	s.latestMu.Lock()
	s.latest = body
	s.latestMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) takeLatest() []byte {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	body := s.latest
	s.latest = nil
	return body
}

func (s *session) onChange(ctx context.Context) func(appointments.State) {
	return func(state appointments.State) {
		view := appointments.NewViewDTO(state)
		s.enqueue(ctx, Frame{Type: FrameAppointments, View: &view})
	}
}

// ShowNotification renders a push as a notification frame.
func (s *session) ShowNotification(ctx context.Context, payload models.PushPayload) error {
	p := payload
	s.enqueue(ctx, Frame{Type: FrameNotification, Notification: &p})
	return nil
}

// FocusOrOpen asks the client to navigate to url.
func (s *session) FocusOrOpen(ctx context.Context, url string) error {
	s.enqueue(ctx, Frame{Type: FrameNavigate, URL: url})
	return nil
}

func (s *session) channels() []string {
	return []string{redis.SalonChannel(s.salonID), redis.UserChannel(s.userID)}
}

func (s *session) handleEvent(ctx context.Context) func(realtime.Event) {
	return func(evt realtime.Event) {
		switch evt.Type {
		case realtime.EventAppointmentsChanged:
			if evt.SalonID == s.salonID {
				s.loader.Revalidate(ctx)
			}
		case realtime.EventNotification:
			if evt.Payload == nil || evt.UserID != s.userID {
				return
			}
			if _, err := s.fg.OnBackgroundMessage(ctx, *evt.Payload); err != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"notification_id": evt.NotificationID, "error": err.Error()}), "push not shown")
			}
		}
	}
}

func (s *session) handleMessage(ctx context.Context, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.enqueue(ctx, Frame{Type: FrameError, Error: "malformed message"})
		return
	}
	switch strings.TrimSpace(msg.Type) {
	case MessageFilters:
		filters, err := appointments.ParseFilters(msg.Date, msg.Status, msg.Deleted, msg.From, msg.To, s.loc)
		if err != nil {
			s.enqueue(ctx, Frame{Type: FrameError, Error: err.Error()})
			return
		}
		s.loader.Load(ctx, s.salonID, filters)
	case MessageRefresh:
		s.loader.Refresh(ctx)
	case MessageNotificationClick:
		if err := s.fg.OnNotificationClick(ctx, msg.Data); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "notification click not handled")
		}
	default:
		s.enqueue(ctx, Frame{Type: FrameError, Error: "unknown message type"})
	}
}

func (s *session) readPump(ctx context.Context) {
	defer s.stop()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "live session read failed")
			}
			return
		}
		s.handleMessage(ctx, message)
	}
}

func (s *session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.stop()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-s.send:
			if !s.write(ctx, message) {
				return
			}
		case <-s.wake:
			if message := s.takeLatest(); message != nil && !s.write(ctx, message) {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) write(ctx context.Context, message []byte) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "live session write failed")
		}
		return false
	}
	return true
}
