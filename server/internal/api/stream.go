package api

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"robot-coach/server/internal/model"

	"github.com/gorilla/websocket"
)

const (
	streamBufferSize   = 16
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 5 * time.Second
)

// StreamMessage 是 websocket 上收发的消息。
// 客户端发送 {"type":"trigger","trigger":"..."}，服务端推送 transition / error。
type StreamMessage struct {
	Type      string                  `json:"type"`
	SessionID string                  `json:"session_id,omitempty"`
	Trigger   string                  `json:"trigger,omitempty"`
	Result    *model.TransitionResult `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	ServerTS  time.Time               `json:"server_ts"`
}

// TriggerHandler 处理客户端经 websocket 发来的触发。
type TriggerHandler func(ctx context.Context, sessionID, trigger string) error

// StreamHub 维护每个会话的 websocket 订阅者，并把转移结果广播给它们。
type StreamHub struct {
	mu     sync.RWMutex
	subs   map[string]map[*streamConn]struct{}
	logger *log.Logger
}

func NewStreamHub(logger *log.Logger) *StreamHub {
	if logger == nil {
		logger = log.Default()
	}
	return &StreamHub{
		subs:   make(map[string]map[*streamConn]struct{}),
		logger: logger,
	}
}

// Publish 非阻塞地把结果投递给会话的全部订阅者，缓冲满的连接会丢弃本条消息。
func (h *StreamHub) Publish(sessionID string, res model.TransitionResult) {
	msg := StreamMessage{
		Type:      "transition",
		SessionID: sessionID,
		Result:    &res,
		ServerTS:  time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sc := range h.subs[sessionID] {
		if !sc.enqueue(msg) {
			h.logger.Printf("[Stream] ⚠️ Subscriber buffer full, dropping message for session %s", sessionID)
		}
	}
}

// Subscribers 返回会话当前的订阅者数量。
func (h *StreamHub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *StreamHub) add(sc *streamConn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sc.sessionID] == nil {
		h.subs[sc.sessionID] = make(map[*streamConn]struct{})
	}
	h.subs[sc.sessionID][sc] = struct{}{}
	return len(h.subs[sc.sessionID])
}

func (h *StreamHub) remove(sc *streamConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[sc.sessionID], sc)
	if len(h.subs[sc.sessionID]) == 0 {
		delete(h.subs, sc.sessionID)
	}
}

// Serve 注册连接并阻塞到连接关闭。
func (h *StreamHub) Serve(ctx context.Context, sessionID string, conn *websocket.Conn, onTrigger TriggerHandler) {
	sc := &streamConn{
		sessionID: sessionID,
		conn:      conn,
		sendCh:    make(chan StreamMessage, streamBufferSize),
		closeChan: make(chan struct{}),
		logger:    h.logger,
	}
	total := h.add(sc)
	h.logger.Printf("[Stream] 🔌 Subscriber joined session %s (total: %d)", sessionID, total)

	defer func() {
		h.remove(sc)
		sc.Close()
		h.logger.Printf("[Stream] Subscriber left session %s", sessionID)
	}()

	go sc.writeLoop()
	sc.readLoop(ctx, onTrigger)
}

type streamConn struct {
	sessionID string
	conn      *websocket.Conn
	sendCh    chan StreamMessage
	closeChan chan struct{}
	closeOnce sync.Once
	logger    *log.Logger
}

func (sc *streamConn) enqueue(msg StreamMessage) bool {
	select {
	case <-sc.closeChan:
		return true
	default:
	}
	select {
	case sc.sendCh <- msg:
		return true
	default:
		return false
	}
}

// readLoop 读取客户端消息，直到连接断开。
func (sc *streamConn) readLoop(ctx context.Context, onTrigger TriggerHandler) {
	for {
		messageType, data, err := sc.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sc.logger.Printf("[Stream] client read error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sc.sendError("invalid json")
			continue
		}
		if msg.Type != "trigger" {
			sc.sendError("unsupported message type: " + msg.Type)
			continue
		}
		if onTrigger == nil {
			continue
		}
		// 成功的转移结果经 Publish 广播回来，这里只回报错误。
		if err := onTrigger(ctx, sc.sessionID, msg.Trigger); err != nil {
			sc.sendError(err.Error())
		}
	}
}

func (sc *streamConn) sendError(errMsg string) {
	sc.enqueue(StreamMessage{Type: "error", SessionID: sc.sessionID, Error: errMsg, ServerTS: time.Now()})
}

// writeLoop 串行写出消息并定期 ping，保证同一连接只有一个写者。
func (sc *streamConn) writeLoop() {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sc.closeChan:
			return
		case msg := <-sc.sendCh:
			_ = sc.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := sc.conn.WriteJSON(msg); err != nil {
				sc.logger.Printf("[Stream] write to client: %v", err)
				sc.Close()
				return
			}
		case <-ticker.C:
			if err := sc.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(streamWriteTimeout)); err != nil {
				sc.Close()
				return
			}
		}
	}
}

func (sc *streamConn) Close() {
	sc.closeOnce.Do(func() {
		close(sc.closeChan)
		_ = sc.conn.Close()
	})
}
