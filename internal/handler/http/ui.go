package http

import (
	"net/http"

	"github.com/utafrali/storefront/internal/ui"
	"github.com/utafrali/storefront/pkg/httputil"
)

// Snapshotter exposes the current state of the page elements.
type Snapshotter interface {
	Snapshot() map[string]ui.ElementState
}

// UIHandler serves the badge and navigation state the services render.
type UIHandler struct {
	doc Snapshotter
}

// NewUIHandler creates a new UI HTTP handler.
func NewUIHandler(doc Snapshotter) *UIHandler {
	return &UIHandler{doc: doc}
}

// Elements handles GET /api/v1/ui/elements
func (h *UIHandler) Elements(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, "", h.doc.Snapshot())
}
