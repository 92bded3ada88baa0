package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	"github.com/tanpawarit/chative-gateway/agent/stream"
	"github.com/tanpawarit/chative-gateway/agent/tool"
)

// MaxRequestBodySize bounds every JSON request body.
const MaxRequestBodySize = 1 << 20

type Chatter interface {
	HandleMessage(ctx context.Context, req contractx.ChatRequest) (contractx.ChatResponse, error)
	StreamMessage(ctx context.Context, req contractx.ChatRequest, sink stream.Sink) (contractx.ChatResponse, error)
}

type ToolExecutor interface {
	contractx.ToolGateway
	Registry() *tool.Registry
}

type Server struct {
	router  *chi.Mux
	chat    Chatter
	tools   ToolExecutor
	mcp     *mcpServer
	origins map[string]bool

	enableMCP bool
	name      string
	version   string
}

type Options func(*Server)

// WithAllowedOrigins limits WebSocket upgrades to the given origins. Without
// it every origin is accepted.
func WithAllowedOrigins(origins ...string) Options {
	return func(s *Server) {
		if len(origins) == 0 {
			return
		}
		s.origins = make(map[string]bool, len(origins))
		for _, o := range origins {
			s.origins[o] = true
		}
	}
}

func WithMCP(enabled bool) Options {
	return func(s *Server) {
		s.enableMCP = enabled
	}
}

func WithServerInfo(name, version string) Options {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

func New(chat Chatter, tools ToolExecutor, opts ...Options) (*Server, error) {
	if chat == nil {
		return nil, errors.New("chat handler is required")
	}
	if tools == nil {
		return nil, errors.New("tool executor is required")
	}

	r := chi.NewRouter()
	s := &Server{
		router:    r,
		chat:      chat,
		tools:     tools,
		enableMCP: true,
		name:      "chative-gateway",
		version:   "1.0.0",
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Get("/chat/ws", s.handleChatWebSocket)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Post("/", s.handleCreateProduct)
			r.Get("/{id}", s.handleGetProduct)
			r.Patch("/{id}", s.handleUpdateProduct)
			r.Put("/{id}", s.handleUpdateProduct)
			r.Delete("/{id}", s.handleDeleteProduct)
		})
	})

	if s.enableMCP {
		s.mcp = newMCPServer(tools, s.name, s.version)
		r.Post("/mcp", s.mcp.handlePost)
		r.Delete("/mcp", s.mcp.handleDelete)
		r.Get("/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, DELETE")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		})
	}

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"tools":  len(s.tools.Registry().Definitions()),
		"time":   time.Now().UTC(),
	})
}

func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		defer func() {
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("access")
		}()

		next.ServeHTTP(ww, r)
	})
}
