package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/adalundhe/canvas/core/sandbox"
	"github.com/adalundhe/canvas/core/sanitize"
	"github.com/adalundhe/canvas/core/tokens"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	wsQueue     = 32
)

var previewUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsInbound struct {
	Type    string        `json:"type"`
	Code    string        `json:"code,omitempty"`
	Session string        `json:"session,omitempty"`
	Handler string        `json:"handler,omitempty"`
	Event   sandbox.Event `json:"event"`
}

type wsOutbound struct {
	Type    string           `json:"type"`
	Surface string           `json:"surface,omitempty"`
	Outcome *sandbox.Outcome `json:"outcome,omitempty"`
	Pending int              `json:"pending,omitempty"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

// previewSocket drives one preview surface. Sources are begun in arrival
// order and rendered by a single worker; an outcome older than the newest
// session is never sent. The surface is dropped when the socket closes.
func (s *Server) previewSocket(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id := sandbox.SurfaceID(user, chi.URLParam(r, "surface"))

	conn, err := previewUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("preview upgrade failed", "surface", id, "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	manager := s.engine.Manager()
	sf := manager.Surface(id)
	defer manager.Drop(id)

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, wsQueue)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	jobs := make(chan func(), wsQueue)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-jobs:
				job()
			}
		}
	}()

	stop := func() {
		cancel()
		<-writerDone
		<-workerDone
	}
	enqueue := func(job func()) bool {
		select {
		case jobs <- job:
			return true
		case <-ctx.Done():
			return false
		}
	}
	deliver := func(out sandbox.Outcome, err error) {
		switch {
		case errors.Is(err, sandbox.ErrSessionSuperseded), errors.Is(err, sandbox.ErrSessionClosed):
			return
		case errors.Is(err, sandbox.ErrNothingMounted):
			pushWS(writeCh, wsOutbound{Type: "error", Code: "nothing_mounted", Message: err.Error()})
			return
		case err != nil:
			s.logger.Warn("preview render failed", "surface", id, "err", err)
			pushWS(writeCh, wsOutbound{Type: "error", Code: "internal", Message: err.Error()})
			return
		}
		if out.Seq < sf.Latest() {
			return
		}
		pushWS(writeCh, wsOutbound{Type: "outcome", Outcome: &out, Pending: sf.PendingTimers()})
	}

	pushWS(writeCh, wsOutbound{Type: "ready", Surface: id})

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			stop()
			return
		}

		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushWS(writeCh, wsOutbound{Type: "pong"})
		case "source":
			current, err := tokens.Load(ctx, s.studio.Tokens(), user)
			if err != nil {
				pushWS(writeCh, wsOutbound{Type: "error", Code: "internal", Message: err.Error()})
				continue
			}
			session := sf.Begin(sanitize.Sanitize(in.Code), sandbox.NewSnapshot(current))
			enqueue(func() {
				deliver(s.engine.Apply(ctx, sf, session))
			})
		case "event":
			enqueue(func() {
				deliver(sf.Dispatch(ctx, in.Session, in.Handler, in.Event))
			})
		case "timers":
			enqueue(func() {
				deliver(sf.RunTimers(ctx, in.Session))
			})
		case "":
			pushWS(writeCh, wsOutbound{Type: "error", Code: "invalid_argument", Message: "type is required"})
		default:
			pushWS(writeCh, wsOutbound{Type: "error", Code: "invalid_argument", Message: "unsupported type: " + in.Type})
		}
	}
}

// pushWS queues out, dropping the oldest queued message when the writer
// falls behind.
func pushWS(writeCh chan wsOutbound, out wsOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
