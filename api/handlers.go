/*
handlers.go - HTTP API handlers for the billing service

PURPOSE:
  Exposes the balance engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Sites:
    GET    /api/sites                    List sites visible to the token
    GET    /api/sites/{id}               Site metadata
    GET    /api/sites/{id}/balance       Current computed position
    GET    /api/sites/{id}/daily         Full per-day breakdown for the cycle
    POST   /api/sites/{id}/refresh       Force an immediate refresh

  Settings:
    GET    /api/sites/{id}/settings      Current billing parameters
    PUT    /api/sites/{id}/settings      Update billing parameters

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 502: Upstream provider failure
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - refresher.go: Background refresh loop
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wattle/billing-engine/amber"
	"github.com/wattle/billing-engine/billing"
	"github.com/wattle/billing-engine/store"
)

// Surcharge and subscription bounds accepted by the settings endpoint.
// Wide enough for every published Australian tariff.
const (
	maxSurchargeCents = 500
	maxSubscription   = 100
)

// SiteSource supplies site metadata. Satisfied by *amber.Client.
type SiteSource interface {
	ListSites(ctx context.Context) ([]amber.Site, error)
	GetSite(ctx context.Context, siteID string) (amber.Site, error)
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     store.Store
	Sites     SiteSource
	Refresher *Refresher
	Defaults  store.SiteSettings
	Log       zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(st store.Store, sites SiteSource, ref *Refresher, defaults store.SiteSettings, log zerolog.Logger) *Handler {
	return &Handler{
		Store:     st,
		Sites:     sites,
		Refresher: ref,
		Defaults:  defaults,
		Log:       log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// SITE HANDLERS
// =============================================================================

// ListSites returns every site visible to the configured token.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.Sites.ListSites(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to list sites", err)
		return
	}

	dtos := make([]SiteDTO, len(sites))
	for i, s := range sites {
		dtos[i] = toSiteDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSite returns one site's metadata.
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	site, err := h.Sites.GetSite(r.Context(), id)
	if err != nil {
		var apiErr *amber.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "Site not found", nil)
			return
		}
		writeError(w, http.StatusBadGateway, "Failed to get site", err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteDTO(site))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns the last computed position for a site. If no snapshot
// exists yet (fresh database), one refresh is attempted inline.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	snap, err := h.Store.GetSnapshot(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		if refErr := h.Refresher.RefreshSite(ctx, id); refErr != nil {
			writeError(w, http.StatusBadGateway, "No position available and refresh failed", refErr)
			return
		}
		snap, err = h.Store.GetSnapshot(ctx, id)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load position", err)
		return
	}

	writeRawJSON(w, http.StatusOK, snap.Payload)
}

// GetDaily returns the per-day breakdown for the whole current cycle.
func (h *Handler) GetDaily(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	settings := h.settingsOrDefaults(ctx, id)
	today := billing.DateOf(h.Refresher.now().In(h.Refresher.Location))

	cycle, err := billing.ComputeCycle(today, settings.StartDay)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid billing configuration", err)
		return
	}

	intervals, err := h.Store.LoadIntervals(ctx, id, cycle.Start, cycle.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load usage", err)
		return
	}

	writeJSON(w, http.StatusOK, toDailyDTOs(billing.Aggregate(intervals, cycle)))
}

// TriggerRefresh forces an immediate refresh and returns the new position.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if err := h.Refresher.RefreshSite(ctx, id); err != nil {
		writeError(w, http.StatusBadGateway, "Refresh failed", err)
		return
	}

	snap, err := h.Store.GetSnapshot(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Refresh succeeded but no snapshot stored", err)
		return
	}
	writeRawJSON(w, http.StatusOK, snap.Payload)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the billing parameters for a site.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, toSettingsDTO(h.settingsOrDefaults(r.Context(), id)))
}

// UpdateSettings validates and stores new billing parameters, then kicks
// off a refresh so the position reflects them promptly.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	settings := h.settingsOrDefaults(ctx, id)
	if req.StartDay != nil {
		settings.StartDay = *req.StartDay
	}
	if req.SurchargeCents != nil {
		settings.SurchargeCents = decimal.NewFromFloat(*req.SurchargeCents)
	}
	if req.Subscription != nil {
		settings.Subscription = decimal.NewFromFloat(*req.Subscription)
	}

	if err := validateSettings(settings); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid settings", err)
		return
	}

	if err := h.Store.SaveSettings(ctx, settings); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}

	// Recompute in the background; the stored position catches up within
	// a second rather than waiting on an upstream fetch here.
	go func() {
		if err := h.Refresher.RefreshSite(context.Background(), id); err != nil {
			h.Log.Error().Err(err).Str("site", id).Msg("post-settings refresh failed")
		}
	}()

	writeJSON(w, http.StatusOK, toSettingsDTO(settings))
}

func validateSettings(s store.SiteSettings) error {
	if s.StartDay < billing.MinStartDay || s.StartDay > billing.MaxStartDay {
		return &billing.InvalidConfigurationError{
			Field:  "start_day",
			Value:  s.StartDay,
			Reason: fmt.Sprintf("must be between %d and %d", billing.MinStartDay, billing.MaxStartDay),
		}
	}
	if s.SurchargeCents.IsNegative() || s.SurchargeCents.GreaterThan(decimal.NewFromInt(maxSurchargeCents)) {
		return &billing.InvalidConfigurationError{
			Field:  "surcharge_cents",
			Value:  s.SurchargeCents.String(),
			Reason: fmt.Sprintf("must be between 0 and %d", maxSurchargeCents),
		}
	}
	if s.Subscription.IsNegative() || s.Subscription.GreaterThan(decimal.NewFromInt(maxSubscription)) {
		return &billing.InvalidConfigurationError{
			Field:  "subscription",
			Value:  s.Subscription.String(),
			Reason: fmt.Sprintf("must be between 0 and %d", maxSubscription),
		}
	}
	return nil
}

func toSettingsDTO(s store.SiteSettings) SettingsDTO {
	dto := SettingsDTO{
		SiteID:         s.SiteID,
		StartDay:       s.StartDay,
		SurchargeCents: s.SurchargeCents.InexactFloat64(),
		Subscription:   s.Subscription.InexactFloat64(),
	}
	if !s.UpdatedAt.IsZero() {
		dto.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func (h *Handler) settingsOrDefaults(ctx context.Context, siteID string) store.SiteSettings {
	settings, err := h.Store.GetSettings(ctx, siteID)
	if err != nil {
		settings = h.Defaults
		settings.SiteID = siteID
	}
	return settings
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeRawJSON serves a payload that is already JSON, such as a stored
// snapshot, without a decode/encode round trip.
func writeRawJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
