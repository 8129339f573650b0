package handler

import (
	"net/http"

	"github.com/intentgraph/intentgraph/internal/models"
)

// Grapher renders the routing graph as Mermaid
type Grapher interface {
	Mermaid() string
}

// GraphHandler handles GET /api/v1/graph
type GraphHandler struct {
	g Grapher
}

func NewGraphHandler(g Grapher) *GraphHandler {
	return &GraphHandler{g: g}
}

// Graph answers text/plain by default and JSON when the client asks for it
func (h *GraphHandler) Graph(w http.ResponseWriter, r *http.Request) {
	diagram := h.g.Mermaid()
	if r.Header.Get("Accept") == "application/json" {
		models.WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "format": "mermaid", "graph": diagram})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(diagram))
}
