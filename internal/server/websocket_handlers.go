package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/cutout/internal/grabcut"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 64 << 20
)

// WebSocketSegmentRequest is one segmentation request sent by a client.
// Image and Mask are encoded images (base64 in JSON).
type WebSocketSegmentRequest struct {
	RequestID  string `json:"request_id,omitempty"`
	Image      []byte `json:"image"`
	Mask       []byte `json:"mask,omitempty"`
	Rect       string `json:"rect,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
	Components int    `json:"components,omitempty"`
	Format     string `json:"format,omitempty"`
	Solver     string `json:"solver,omitempty"`
}

// WebSocketSegmentResponse is sent for progress, completion and errors.
type WebSocketSegmentResponse struct {
	Type      string            `json:"type"`
	Status    string            `json:"status"` // "processing", "completed", "error"
	Progress  float64           `json:"progress,omitempty"`
	Iteration int               `json:"iteration,omitempty"`
	Total     int               `json:"total,omitempty"`
	Energy    *grabcut.Energy   `json:"energy,omitempty"`
	Result    *pipeline.Summary `json:"result,omitempty"`
	Format    string            `json:"format,omitempty"`
	Image     []byte            `json:"image,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorType string            `json:"error_type,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// segmentWebSocketHandler streams segmentation progress over a WebSocket.
func (s *Server) segmentWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.log().Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log().Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		}
	}
}

// handleWebSocketMessage runs one request, sending a progress message after
// every iteration and a final completed or error message.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketSegmentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	job, format, err := s.buildJob(requestID, req.Image, segmentOptions{
		Rect:       req.Rect,
		Mask:       req.Mask,
		Iterations: req.Iterations,
		Components: req.Components,
		Format:     req.Format,
		Solver:     req.Solver,
	})
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketSegmentResponse{
		Type:      "segment_response",
		Status:    "processing",
		RequestID: requestID,
	})

	job.Progress = func(iteration, total int, energy grabcut.Energy) {
		e := energy
		s.sendWebSocketResponse(conn, WebSocketSegmentResponse{
			Type:      "segment_response",
			Status:    "processing",
			Progress:  float64(iteration) / float64(total),
			Iteration: iteration,
			Total:     total,
			Energy:    &e,
			RequestID: requestID,
		})
	}

	out, err := s.runJob(ctx, "websocket", job)
	if err != nil {
		s.sendWebSocketError(conn, requestID, errorLabel(err), fmt.Sprintf("Segmentation failed: %v", err))
		return
	}

	opts := s.pipeline.Config().Render
	summary, err := pipeline.Summarize(out, opts.Simplify)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "processing_error", err.Error())
		return
	}
	resp := WebSocketSegmentResponse{
		Type:      "segment_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    summary,
		Format:    format,
		RequestID: requestID,
	}
	if format != pipeline.FormatJSON {
		var buf bytes.Buffer
		if err := pipeline.Render(&buf, out, format, opts); err != nil {
			s.sendWebSocketError(conn, requestID, "processing_error", fmt.Sprintf("rendering failed: %v", err))
			return
		}
		resp.Image = buf.Bytes()
	}
	s.sendWebSocketResponse(conn, resp)
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketSegmentResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.log().Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log().Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketSegmentResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
