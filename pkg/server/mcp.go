package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	"github.com/tanpawarit/chative-gateway/agent/remote"
	storex "github.com/tanpawarit/chative-gateway/agent/store"
)

var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2025-06-18": true,
}

type mcpSession struct {
	id        string
	createdAt time.Time
}

type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*mcpSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*mcpSession)}
}

func (s *sessionStore) create() *mcpSession {
	sess := &mcpSession{id: uuid.New().String(), createdAt: time.Now()}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) (*mcpSession, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

// mcpServer exposes every registered tool over MCP Streamable HTTP, answering
// with plain JSON bodies.
type mcpServer struct {
	tools    ToolExecutor
	sessions *sessionStore
	name     string
	version  string
}

func newMCPServer(tools ToolExecutor, name, version string) *mcpServer {
	return &mcpServer{
		tools:    tools,
		sessions: newSessionStore(),
		name:     name,
		version:  version,
	}
}

type toolPayload struct {
	Products []storex.Record `json:"products,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (m *mcpServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(remote.SessionHeader)
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	if !m.sessions.delete(sessionID) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	log.Ctx(r.Context()).Info().Str("session_id", sessionID).Msg("mcp session terminated")
	w.WriteHeader(http.StatusNoContent)
}

func (m *mcpServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		m.sendError(w, nil, remote.CodeParseError, "failed to read request body")
		return
	}
	if len(body) > MaxRequestBodySize {
		m.sendError(w, nil, remote.CodeInvalidRequest, "request body too large")
		return
	}

	var req remote.JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		m.sendError(w, nil, remote.CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		m.sendError(w, req.ID, remote.CodeInvalidRequest, "invalid JSON-RPC version")
		return
	}

	if req.Method != "initialize" {
		if v := r.Header.Get("Mcp-Protocol-Version"); v != "" && !supportedProtocolVersions[v] {
			http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
			return
		}
		sessionID := r.Header.Get(remote.SessionHeader)
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		if _, ok := m.sessions.get(sessionID); !ok {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	}

	if req.IsNotification() {
		if !strings.HasPrefix(req.Method, "notifications/") {
			log.Ctx(r.Context()).Warn().Str("method", req.Method).Msg("notification for non-notification method")
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		m.handleInitialize(w, req)
	case "ping":
		m.sendResult(w, req.ID, map[string]any{})
	case "tools/list":
		m.handleToolsList(w, req)
	case "tools/call":
		m.handleToolsCall(w, r, req)
	default:
		m.sendError(w, req.ID, remote.CodeMethodNotFound, "method not found")
	}
}

func (m *mcpServer) handleInitialize(w http.ResponseWriter, req remote.JSONRPCRequest) {
	sess := m.sessions.create()
	log.Info().Str("session_id", sess.id).Msg("mcp session created")

	w.Header().Set(remote.SessionHeader, sess.id)
	m.sendResult(w, req.ID, map[string]any{
		"protocolVersion": remote.ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    m.name,
			"version": m.version,
		},
	})
}

func (m *mcpServer) handleToolsList(w http.ResponseWriter, req remote.JSONRPCRequest) {
	defs := m.tools.Registry().Definitions()
	result := remote.ListToolsResult{Tools: make([]remote.ToolInfo, 0, len(defs))}
	for _, def := range defs {
		schema, err := json.Marshal(def.InputSchema())
		if err != nil {
			m.sendError(w, req.ID, remote.CodeInternalError, "encode input schema")
			return
		}
		result.Tools = append(result.Tools, remote.ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}
	m.sendResult(w, req.ID, result)
}

func (m *mcpServer) handleToolsCall(w http.ResponseWriter, r *http.Request, req remote.JSONRPCRequest) {
	var params remote.CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			m.sendError(w, req.ID, remote.CodeInvalidParams, "invalid params")
			return
		}
	}
	if params.Name == "" {
		m.sendError(w, req.ID, remote.CodeInvalidParams, "tool name is required")
		return
	}
	if _, ok := m.tools.Registry().Lookup(params.Name); !ok {
		m.sendError(w, req.ID, remote.CodeInvalidParams, "tool not found")
		return
	}

	results := m.tools.Execute(r.Context(), []contractx.ToolRequest{{Tool: params.Name, Args: params.Arguments}})
	if len(results) != 1 {
		m.sendError(w, req.ID, remote.CodeInternalError, "no tool result")
		return
	}
	res := results[0]

	if !res.Success() {
		payload, _ := json.Marshal(remote.ErrorPayload{ErrorKind: string(res.ErrorKind), Message: res.Error})
		m.sendResult(w, req.ID, remote.CallToolResult{
			Content: []remote.Content{{Type: "text", Text: string(payload)}},
			IsError: true,
		})
		return
	}

	out := remote.CallToolResult{
		Content: []remote.Content{{Type: "text", Text: res.Message}},
	}
	if len(res.Records) > 0 || len(res.Data) > 0 {
		structured, err := json.Marshal(toolPayload{Products: res.Records, Data: res.Data})
		if err != nil {
			m.sendError(w, req.ID, remote.CodeInternalError, "encode tool result")
			return
		}
		out.StructuredContent = structured
	}
	m.sendResult(w, req.ID, out)
}

func (m *mcpServer) sendResult(w http.ResponseWriter, id json.RawMessage, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		m.sendError(w, id, remote.CodeInternalError, "encode result")
		return
	}
	writeJSON(w, http.StatusOK, remote.JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: raw})
}

func (m *mcpServer) sendError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, remote.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &remote.JSONRPCError{Code: code, Message: message},
	})
}
