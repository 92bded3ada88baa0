package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	storex "github.com/tanpawarit/chative-gateway/agent/store"
	"github.com/tanpawarit/chative-gateway/agent/tool"
)

type productsResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Products []storex.Record `json:"products"`
}

type productBody struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Name      *string `json:"name"`
	Category  *string `json:"category"`
	Quantity  *int    `json:"quantity"`
}

func (b productBody) args() map[string]any {
	args := map[string]any{}
	switch {
	case b.ID != "":
		args["id"] = b.ID
	case b.ProductID != "":
		args["id"] = b.ProductID
	}
	if b.Name != nil {
		args["name"] = *b.Name
	}
	if b.Category != nil {
		args["category"] = *b.Category
	}
	if b.Quantity != nil {
		args["quantity"] = *b.Quantity
	}
	return args
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{}
	q := r.URL.Query()
	if v := q.Get("category"); v != "" {
		args["category"] = v
	}
	if v := q.Get("search"); v != "" {
		args["search"] = v
	}
	s.runProductTool(w, r, tool.ToolListProducts, args, http.StatusOK)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{"id": chi.URLParam(r, "id")}
	s.runProductTool(w, r, tool.ToolGetProduct, args, http.StatusOK)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var body productBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, string(contractx.KindValidation), "Request body must be a JSON product.")
		return
	}
	s.runProductTool(w, r, tool.ToolCreateProduct, body.args(), http.StatusCreated)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var body productBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, string(contractx.KindValidation), "Request body must be a JSON product patch.")
		return
	}
	args := body.args()
	args["id"] = chi.URLParam(r, "id")
	s.runProductTool(w, r, tool.ToolUpdateProduct, args, http.StatusOK)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{"id": chi.URLParam(r, "id")}
	s.runProductTool(w, r, tool.ToolDeleteProduct, args, http.StatusOK)
}

func (s *Server) runProductTool(w http.ResponseWriter, r *http.Request, name string, args map[string]any, okStatus int) {
	results := s.tools.Execute(r.Context(), []contractx.ToolRequest{{Tool: name, Args: args}})
	if len(results) != 1 {
		writeError(w, http.StatusInternalServerError, string(contractx.KindInternal), "No result from tool.")
		return
	}

	res := results[0]
	if !res.Success() {
		writeError(w, statusFor(res.ErrorKind), string(res.ErrorKind), res.Error)
		return
	}

	products := res.Records
	if products == nil {
		products = []storex.Record{}
	}
	writeJSON(w, okStatus, productsResponse{Success: true, Message: res.Message, Products: products})
}

func statusFor(kind contractx.ErrorKind) int {
	switch kind {
	case contractx.KindValidation:
		return http.StatusBadRequest
	case contractx.KindDuplicateKey:
		return http.StatusConflict
	case contractx.KindNotFound, contractx.KindToolNotFound:
		return http.StatusNotFound
	case contractx.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case contractx.KindRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
