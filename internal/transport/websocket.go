package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second

	// Maximum message size accepted from the peer.
	wsMaxMessageSize = 4 << 20
)

// ErrConnectionClosed is returned for requests issued on, or pending when, a
// closed WebSocket connection.
var ErrConnectionClosed = errors.New("websocket connection closed")

// wsRequest is the frame sent for every request.
type wsRequest struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint,omitempty"`
	Request
}

// wsReply is the frame the peer answers with. Its id matches the request.
type wsReply struct {
	ID     string          `json:"id"`
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

type wsResult struct {
	resp *Response
	err  error
}

// WebSocket is a Transport that multiplexes requests over one connection.
// Replies are matched to requests by id, so they may arrive in any order.
type WebSocket struct {
	conn   *websocket.Conn
	url    string
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan wsResult
	nextID  uint64
	err     error

	done chan struct{}
}

// DialWebSocket connects to url and starts the read loop.
func DialWebSocket(ctx context.Context, url string, header http.Header, logger *slog.Logger) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, &TransportError{Endpoint: url, Message: "dial", Err: err}
	}
	return NewWebSocket(conn, url, logger), nil
}

// NewWebSocket wraps an established connection and starts the read loop.
func NewWebSocket(conn *websocket.Conn, url string, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	ws := &WebSocket{
		conn:    conn,
		url:     url,
		logger:  logger,
		pending: make(map[string]chan wsResult),
		done:    make(chan struct{}),
	}
	conn.SetReadLimit(wsMaxMessageSize)
	go ws.readLoop()
	return ws
}

// Request sends req and waits for the matching reply. Files cannot be sent
// over the WebSocket transport.
func (ws *WebSocket) Request(ctx context.Context, endpoint string, req Request, files []File) (*Response, error) {
	if len(files) > 0 {
		return nil, &TransportError{Endpoint: ws.url, Message: "file uploads are not supported over websocket"}
	}

	ws.mu.Lock()
	if ws.err != nil {
		err := ws.err
		ws.mu.Unlock()
		return nil, &TransportError{Endpoint: ws.url, Err: err}
	}
	ws.nextID++
	id := strconv.FormatUint(ws.nextID, 10)
	ch := make(chan wsResult, 1)
	ws.pending[id] = ch
	ws.mu.Unlock()

	frame, err := json.Marshal(wsRequest{ID: id, Endpoint: endpoint, Request: req})
	if err != nil {
		ws.forget(id)
		return nil, &TransportError{Endpoint: ws.url, Message: "encode request", Err: err}
	}

	if err := ws.write(frame); err != nil {
		ws.forget(id)
		return nil, &TransportError{Endpoint: ws.url, Message: "write", Err: err}
	}

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-ctx.Done():
		ws.forget(id)
		return nil, &TransportError{Endpoint: ws.url, Err: ctx.Err()}
	}
}

func (ws *WebSocket) write(frame []byte) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return ws.conn.WriteMessage(websocket.TextMessage, frame)
}

func (ws *WebSocket) forget(id string) {
	ws.mu.Lock()
	delete(ws.pending, id)
	ws.mu.Unlock()
}

func (ws *WebSocket) readLoop() {
	defer close(ws.done)

	for {
		messageType, message, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Error("websocket read failed", "url", ws.url, "error", err)
			}
			ws.fail(ErrConnectionClosed)
			return
		}
		if messageType != websocket.TextMessage {
			ws.logger.Warn("websocket binary frame ignored", "url", ws.url)
			continue
		}
		ws.deliver(message)
	}
}

func (ws *WebSocket) deliver(message []byte) {
	var reply wsReply
	if err := json.Unmarshal(message, &reply); err != nil {
		ws.logger.Warn("websocket frame not understood", "url", ws.url, "error", err)
		return
	}

	ws.mu.Lock()
	ch, ok := ws.pending[reply.ID]
	delete(ws.pending, reply.ID)
	ws.mu.Unlock()
	if !ok {
		ws.logger.Debug("websocket reply without pending request", "id", reply.ID)
		return
	}

	body, err := json.Marshal(map[string]any{"data": reply.Data, "errors": reply.Errors})
	if err != nil {
		ch <- wsResult{err: &TransportError{Endpoint: ws.url, Err: err}}
		return
	}
	resp, err := DecodeResponse(body)
	if err != nil {
		ch <- wsResult{err: &TransportError{Endpoint: ws.url, Err: err}}
		return
	}
	ch <- wsResult{resp: resp}
}

// fail resolves every pending request with err and rejects future ones.
func (ws *WebSocket) fail(err error) {
	ws.mu.Lock()
	if ws.err == nil {
		ws.err = err
	}
	pending := ws.pending
	ws.pending = make(map[string]chan wsResult)
	ws.mu.Unlock()

	for _, ch := range pending {
		ch <- wsResult{err: &TransportError{Endpoint: ws.url, Err: err}}
	}
}

// Close sends a close frame, closes the connection and waits for the read
// loop to exit.
func (ws *WebSocket) Close() error {
	ws.writeMu.Lock()
	_ = ws.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
	ws.writeMu.Unlock()

	err := ws.conn.Close()
	<-ws.done
	return err
}
