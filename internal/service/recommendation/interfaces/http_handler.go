// internal/service/recommendation/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"bazaar/internal/service/recommendation/application"
)

// RecommendationHandler 封装推荐服务的 HTTP 处理器。
type RecommendationHandler struct {
	service *application.RecommendationService
}

func NewRecommendationHandler(service *application.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *RecommendationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /interactions", h.trackInteraction)
	mux.HandleFunc("GET /users/{id}/recommendations", h.recommend)
}

func (h *RecommendationHandler) trackInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var body struct {
		UserID    string `json:"userId"`
		ProductID string `json:"productId"`
		Type      string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if err := h.service.TrackInteraction(ctx, body.UserID, body.ProductID, body.Type); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *RecommendationHandler) recommend(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.Recommend(ctx, r.PathValue("id"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"recommendations": items})
}
