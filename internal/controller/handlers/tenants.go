package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"forgerun/internal/auth"
	"forgerun/internal/domain"
	"forgerun/pkg/api"
)

// CreateTenant handles POST /tenants, which is served without
// authentication. It generates a new API
// key, hashes it for storage, and returns the raw key exactly once.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	rawKeyBytes := make([]byte, 32)
	if _, err := rand.Read(rawKeyBytes); err != nil {
		h.httpError(w, "Entropy failure", http.StatusInternalServerError)
		return
	}
	apiKey := "fr_" + hex.EncodeToString(rawKeyBytes)
	hashedKey := auth.HashKey(apiKey)

	tenant := &domain.Tenant{
		ID:        uuid.New().String(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateTenant(ctx, tenant, hashedKey); err != nil {
		h.httpError(w, "Failed to create tenant", http.StatusInternalServerError)
		return
	}

	// The raw key is visible exactly once, here.
	h.respondJson(w, http.StatusCreated, api.CreateTenantResponse{
		ID:     tenant.ID,
		Name:   tenant.Name,
		ApiKey: apiKey,
	})
}
