package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/dropauction/go/internal/auction"
	"github.com/mcdev12/dropauction/go/internal/auction/repository"
	"github.com/mcdev12/dropauction/go/internal/models"
)

// ProductCatalog is the read side of the record store used by the REST endpoints.
type ProductCatalog interface {
	ListItems(ctx context.Context) ([]models.ProductSummary, error)
	GetItem(ctx context.Context, itemID string) (*models.Product, error)
	CountShares(ctx context.Context, itemID string) (int64, error)
}

// ProductStateResponse is the current state of one drop.
type ProductStateResponse struct {
	models.ProductSummary
	Window       string     `json:"window"`
	WindowEndsAt *time.Time `json:"window_ends_at,omitempty"`
	Viewers      int        `json:"viewers"`
}

// StateHandler serves product listings and per-product state over HTTP.
type StateHandler struct {
	catalog           ProductCatalog
	connectionManager *ConnectionManager
	window            time.Duration
	clock             clockwork.Clock
}

// NewStateHandler creates a new state handler
func NewStateHandler(catalog ProductCatalog, cm *ConnectionManager, window time.Duration, clock clockwork.Clock) *StateHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = auction.DefaultWindow
	}
	return &StateHandler{
		catalog:           catalog,
		connectionManager: cm,
		window:            window,
		clock:             clock,
	}
}

// HandleListProducts handles GET /api/products
func (h *StateHandler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListItems(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list products")
		http.Error(w, "Failed to list products", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []models.ProductSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": products})
}

// HandleGetProduct handles GET /api/products/{itemID}
func (h *StateHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemID")

	product, err := h.catalog.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Product not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to get product")
		http.Error(w, "Failed to get product", http.StatusInternalServerError)
		return
	}

	total, err := h.catalog.CountShares(r.Context(), itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to count shares")
		http.Error(w, "Failed to get product", http.StatusInternalServerError)
		return
	}

	resp := ProductStateResponse{
		ProductSummary: models.ProductSummary{Product: *product, TotalShares: total},
		Window:         auction.EvaluateWindow(h.clock.Now(), product.DropTime, h.window).String(),
		Viewers:        h.connectionManager.ViewerCount(itemID),
	}
	if product.DropTime != nil {
		end := product.DropTime.Add(h.window)
		resp.WindowEndsAt = &end
	}

	writeJSON(w, http.StatusOK, resp)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.HandleListProducts)
	mux.HandleFunc("GET /api/products/{itemID}", h.HandleGetProduct)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
