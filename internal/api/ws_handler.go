package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/middleware"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 12 << 20
)

// Client message types.
const (
	wsMessageTurn = "turn"
	wsMessageStop = "stop"
)

type wsClientMessage struct {
	Type string `json:"type"`
	SubmitTurnRequest
}

// WebSocketHandler runs turns over a single WebSocket connection. At most one
// turn is active per connection; "stop" cancels every provider of it.
type WebSocketHandler struct {
	turns    core.TurnService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler creates a handler accepting upgrades from clientURL.
// An empty clientURL accepts any origin.
func NewWebSocketHandler(turns core.TurnService, clientURL string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		turns: turns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return clientURL == "" || origin == "" || origin == clientURL
			},
		},
		logger: logger,
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) send(ev StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(ev)
}

// activeTurn tracks the in-flight turn of a connection.
type activeTurn struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (a *activeTurn) start(cancel context.CancelFunc) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return false
	}
	a.cancel = cancel
	return true
}

func (a *activeTurn) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *activeTurn) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// Serve handles GET /api/v1/ws.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	userID := middleware.UserID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Info("websocket upgrade failed", zap.String("userId", userID), zap.Error(err))
		return
	}
	conn.SetReadLimit(wsMaxMessageSize)

	ws := &wsConn{conn: conn}
	connCtx, cancelConn := context.WithCancel(c.Request.Context())
	var (
		current activeTurn
		wg      sync.WaitGroup
	)
	defer func() {
		cancelConn()
		wg.Wait()
		_ = conn.Close()
	}()

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read ended", zap.String("userId", userID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case wsMessageTurn:
			h.startTurn(connCtx, ws, &current, &wg, userID, &msg.SubmitTurnRequest)
		case wsMessageStop:
			current.stop()
		default:
			_ = ws.send(StreamEvent{Type: EventError, Code: CodeInvalidInput, Message: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) startTurn(connCtx context.Context, ws *wsConn, current *activeTurn, wg *sync.WaitGroup, userID string, req *SubmitTurnRequest) {
	turn, err := req.toTurn(userID)
	if err != nil {
		h.reject(ws, err, nil)
		return
	}

	turnCtx, cancel := context.WithCancel(connCtx)
	if !current.start(cancel) {
		cancel()
		_ = ws.send(StreamEvent{Type: EventRejected, Code: CodeInvalidInput, Message: "a turn is already in progress"})
		return
	}

	handles, decision, err := h.turns.Submit(turnCtx, turn)
	if err != nil {
		current.clear()
		if errors.Is(err, core.ErrQuotaExceeded) {
			h.reject(ws, err, &decision)
			return
		}
		h.reject(ws, err, nil)
		return
	}

	if err := ws.send(StreamEvent{Type: EventTurn, TurnID: turn.ID, Quota: &decision}); err != nil {
		current.clear()
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer current.clear()
		for ev := range fanIn(connCtx, turn.ID, handles) {
			if err := ws.send(ev); err != nil {
				current.stop()
			}
		}
		_ = ws.send(StreamEvent{Type: EventTurnEnd, TurnID: turn.ID})
	}()
}

func (h *WebSocketHandler) reject(ws *wsConn, err error, quota *core.QuotaDecision) {
	status, resp := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("websocket turn failed", zap.Error(err))
	}
	_ = ws.send(StreamEvent{Type: EventRejected, Code: resp.Code, Message: resp.Error, Quota: quota})
}
