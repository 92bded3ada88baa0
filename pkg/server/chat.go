package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

const (
	HeaderActionPerformed = "X-Action-Performed"
	HeaderSuccess         = "X-Success"
	TrailerChatResult     = "X-Chat-Result"

	invalidBodyReply = "Sorry, I couldn't read that request."
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req contractx.ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, contractx.ChatResponse{Response: invalidBodyReply})
		return
	}

	resp, err := s.chat.HandleMessage(r.Context(), req)
	status := http.StatusOK
	if errors.Is(err, contractx.ErrInvalidMessage) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// handleChatStream writes the reply as a chunked text/plain body. Metadata is
// sent as headers before the first chunk and repeated as a JSON trailer that
// only arrives when the whole body was delivered.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req contractx.ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, contractx.ChatResponse{Response: invalidBodyReply})
		return
	}

	sink := &httpSink{w: w}
	sink.flusher, _ = w.(http.Flusher)

	resp, err := s.chat.StreamMessage(r.Context(), req, sink)
	if err != nil && !errors.Is(err, contractx.ErrInvalidMessage) {
		log.Ctx(r.Context()).Info().Err(err).Msg("chat stream ended early")
		return
	}

	trailer, merr := json.Marshal(resp.Result())
	if merr != nil {
		log.Ctx(r.Context()).Error().Err(merr).Msg("encode chat trailer")
		return
	}
	w.Header().Set(TrailerChatResult, string(trailer))
}

type httpSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *httpSink) Begin(resp contractx.ChatResponse) {
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set(HeaderActionPerformed, resp.ActionPerformed)
	h.Set(HeaderSuccess, strconv.FormatBool(resp.Success))
	h.Set("Trailer", TrailerChatResult)
	s.w.WriteHeader(http.StatusOK)
}

func (s *httpSink) WriteChunk(ctx context.Context, chunk string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte(chunk)); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

type wsFrame struct {
	Type   string                `json:"type"`
	Data   string                `json:"data,omitempty"`
	Result *contractx.ChatResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if s.origins == nil {
				return true
			}
			return s.origins[r.Header.Get("Origin")]
		},
	}
}

// handleChatWebSocket answers each request frame with chunk frames followed
// by one done frame.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	for {
		var req contractx.ChatRequest
		if err := ws.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Ctx(r.Context()).Debug().Err(err).Msg("websocket read ended")
			}
			return
		}

		sink := wsSink{ws: ws}
		resp, err := s.chat.StreamMessage(r.Context(), req, sink)
		if err != nil && !errors.Is(err, contractx.ErrInvalidMessage) {
			_ = ws.WriteJSON(wsFrame{Type: "error", Error: err.Error()})
			return
		}

		result := resp.Result()
		if err := ws.WriteJSON(wsFrame{Type: "done", Result: &result}); err != nil {
			return
		}
	}
}

type wsSink struct {
	ws *websocket.Conn
}

func (s wsSink) WriteChunk(ctx context.Context, chunk string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.ws.WriteJSON(wsFrame{Type: "chunk", Data: chunk})
}
