package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"safedrive/frontend"
	"safedrive/ml"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsMessage 服务端推送的消息
type wsMessage struct {
	State      string         `json:"state"`
	Label      string         `json:"label,omitempty"`
	Display    string         `json:"display,omitempty"`
	Risk       ml.RiskLevel   `json:"risk,omitempty"`
	Prediction *int           `json:"prediction,omitempty"`
	Model      ml.ModelChoice `json:"model,omitempty"`
	Cached     bool           `json:"cached,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// wsClient 一个交互式预测会话
type wsClient struct {
	conn     *websocket.Conn
	send     chan wsMessage
	session  *frontend.Session
	loc      *frontend.Localizer
	artifact string
	logger   *zap.Logger
}

func (h *handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		conn:     conn,
		send:     make(chan wsMessage, 16),
		session:  h.fe.NewSession(),
		loc:      h.localizer(r),
		artifact: h.fe.ArtifactPath(),
		logger:   h.logger.With(zap.String("request_id", GetRequestID(r.Context()))),
	}
	c.logger.Debug("websocket session opened")

	ctx, cancel := context.WithCancel(h.sessions)
	go c.writePump(ctx)
	c.readPump(ctx, cancel)
	c.logger.Debug("websocket session closed")
}

// readPump 读取提交请求，每条消息对应一次提交，前一次完成后才读取下一条
func (c *wsClient) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("websocket read error", zap.Error(err))
			}
			return
		}

		var in ml.UserInput
		if err := json.Unmarshal(data, &in); err != nil {
			c.emit(ctx, c.errored(fmt.Errorf("%w: %v", ml.ErrInvalidInput, err)))
			continue
		}

		// 同步执行，保证按接收顺序逐条完成
		outcome, err := c.session.Submit(ctx, in)
		switch {
		case err != nil:
			c.emit(ctx, c.errored(err))
		case outcome.Err != nil:
			c.emit(ctx, c.errored(outcome.Err))
		default:
			c.emit(ctx, c.rendered(outcome))
		}
	}
}

// writePump 唯一的写入者，负责心跳
func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Info("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

func (c *wsClient) emit(ctx context.Context, msg wsMessage) {
	select {
	case c.send <- msg:
	case <-ctx.Done():
	}
}

func (c *wsClient) rendered(outcome frontend.Outcome) wsMessage {
	prediction := outcome.Result.Prediction
	return wsMessage{
		State:      frontend.Rendered.String(),
		Label:      outcome.Result.Label(),
		Display:    c.loc.RiskLabel(outcome.Result.Risk),
		Risk:       outcome.Result.Risk,
		Prediction: &prediction,
		Model:      outcome.Result.Model,
		Cached:     outcome.Cached,
	}
}

func (c *wsClient) errored(err error) wsMessage {
	return wsMessage{
		State: frontend.Errored.String(),
		Error: c.loc.Describe(err, c.artifact),
	}
}
