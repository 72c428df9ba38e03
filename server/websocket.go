package server

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"tangled.org/atscan.net/lightproof/proof"
)

const (
	wsPongWait     = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsWriteWait    = 10 * time.Second
	wsMaxMessage   = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn serializes writes; gorilla allows a single concurrent writer
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(messageType, data)
}

// handleWebSocket answers each text message (a tx id) with a WSResponse.
// Requests on one connection are processed in order.
func (s *Server) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := s.requestLogger(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error(err, "websocket upgrade failed")
			return
		}
		defer conn.Close()

		if s.metrics != nil {
			s.metrics.WebSocketClientsActive.Inc()
			defer s.metrics.WebSocketClientsActive.Dec()
		}

		ws := &wsConn{conn: conn}
		conn.SetReadLimit(wsMaxMessage)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})

		done := make(chan struct{})
		defer close(done)
		go s.pingLoop(ws, done)

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("websocket closed: " + err.Error())
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			conn.SetReadDeadline(time.Now().Add(wsPongWait))

			resp := s.answer(r, message)
			data, err := json.Marshal(resp)
			if err != nil {
				logger.Error(err, "failed to encode websocket response")
				return
			}
			if err := ws.write(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket write failed: " + err.Error())
				return
			}
		}
	}
}

func (s *Server) pingLoop(ws *wsConn, done chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ws.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// answer decodes one request message and proves it
func (s *Server) answer(r *http.Request, message []byte) *WSResponse {
	req, err := parseWSRequest(message)
	if err != nil {
		return &WSResponse{Error: errorResponse(err, requestID(r))}
	}

	resp := &WSResponse{ID: req.ID, TxID: req.TxID}
	b, err := s.prove(r.Context(), req.TxID)
	if err != nil {
		resp.Error = errorResponse(err, requestID(r))
		return resp
	}

	result := b.Response()
	resp.Result = &result
	return resp
}

// parseWSRequest accepts either a JSON WSRequest or a bare identifier
func parseWSRequest(message []byte) (*WSRequest, error) {
	message = bytes.TrimSpace(message)
	if len(message) == 0 {
		return nil, proof.NewError(proof.KindInvalidInput, "empty request")
	}

	if message[0] != '{' {
		return &WSRequest{TxID: string(message)}, nil
	}

	var req WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return nil, proof.WrapError(proof.KindInvalidInput, err, "invalid JSON request")
	}
	if req.TxID == "" {
		return nil, proof.NewError(proof.KindInvalidInput, "tx_id is required")
	}
	return &req, nil
}
