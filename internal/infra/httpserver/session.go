package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/logger"
	"github.com/bryanwahyu/macrolens/internal/middleware"
	"github.com/bryanwahyu/macrolens/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// clientMessage is what a websocket client sends.
type clientMessage struct {
	Type    string                 `json:"type"`
	Image   string                 `json:"image,omitempty"`
	Profile *nutrition.UserProfile `json:"profile,omitempty"`
}

// serverMessage is either a snapshot or an error.
type serverMessage struct {
	Type string `json:"type"`
	*session.Snapshot
	Message string `json:"message,omitempty"`
}

// outbox queues messages for writePump. enqueue gives up once the handler
// or the writer has exited.
type outbox struct {
	send       chan serverMessage
	done       chan struct{} // closed by the handler
	writerDone chan struct{} // closed by writePump
}

func newOutbox(size int) *outbox {
	return &outbox{
		send:       make(chan serverMessage, size),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (o *outbox) enqueue(msg serverMessage) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
	case <-o.writerDone:
	}
	return false
}

func (o *outbox) fail(err error) {
	o.enqueue(serverMessage{Type: "error", Message: err.Error()})
}

// GET /api/session/ws
// Each connection drives its own session.Machine.
func (r *Router) handleSessionWS(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	middleware.IncrementSessions()
	defer middleware.DecrementSessions()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := session.New(r.sessionAnalyzer(), r.sessionRecommender(), nil)
	log := logger.L().With(zap.String("session_id", m.ID()))
	log.Info("session connected")

	out := newOutbox(sendBuffer)
	m.OnChange(func(s session.Snapshot) {
		out.enqueue(serverMessage{Type: "snapshot", Snapshot: &s})
	})

	go writePump(conn, out, log)
	defer close(out.done)

	snap := m.Snapshot()
	out.enqueue(serverMessage{Type: "snapshot", Snapshot: &snap})

	conn.SetReadLimit(maxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("session closed with error", zap.Error(err))
			} else {
				log.Info("session disconnected")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			out.enqueue(serverMessage{Type: "error", Message: "malformed message"})
			continue
		}
		if err := dispatch(ctx, m, msg, out.fail); err != nil {
			out.fail(err)
		}
	}
}

// dispatch applies one client message. Long-running actions run in their
// own goroutine so reset and cancel are still read while they are in flight;
// a transition they lose is reported through fail.
func dispatch(ctx context.Context, m *session.Machine, msg clientMessage, fail func(error)) error {
	switch strings.ToLower(msg.Type) {
	case "start":
		return m.Start()
	case "select":
		err := m.SelectImage(msg.Image)
		if errors.Is(err, session.ErrInvalidTransition) {
			return err
		}
		// a rejected image is reported through the snapshot notice
		return nil
	case "cancel":
		return m.Cancel()
	case "reset":
		m.Reset()
		return nil
	case "confirm":
		if m.State() != session.StateConfirm {
			return session.ErrInvalidTransition
		}
		go func() {
			if err := m.Confirm(ctx); errors.Is(err, session.ErrInvalidTransition) {
				fail(err)
			}
		}()
		return nil
	case "recommend":
		if m.State() != session.StateResults {
			return session.ErrInvalidTransition
		}
		go func() {
			if err := m.Recommend(ctx, msg.Profile); errors.Is(err, session.ErrInvalidTransition) {
				fail(err)
			}
		}()
		return nil
	}
	return errors.New("unknown message type: " + msg.Type)
}

func writePump(conn *websocket.Conn, out *outbox, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(out.writerDone)
	}()

	for {
		select {
		case <-out.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-out.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn("session write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sessionAnalyzer runs analyses in-process and turns failures into the
// same public messages the HTTP endpoint returns.
func (r *Router) sessionAnalyzer() session.Analyzer {
	return session.AnalyzerFunc(func(ctx context.Context, image string) (session.Analysis, error) {
		out, err := r.analyze(ctx, image)
		if err != nil {
			_, msg := publicError(err)
			return session.Analysis{}, errors.New(msg)
		}
		return session.Analysis{Result: out.Result, Degraded: out.Degraded}, nil
	})
}

func (r *Router) sessionRecommender() session.Recommender {
	return session.RecommenderFunc(func(ctx context.Context, result nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) ([]string, error) {
		return r.recommend(ctx, result, profile), nil
	})
}

// originChecker accepts requests without an Origin header and those from
// an allowed origin. "*" allows any origin.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
