package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/fraud"
	"github.com/opensource-health/heron/internal/pipeline"
	"github.com/opensource-health/heron/internal/policy"
	"github.com/opensource-health/heron/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	adjudicator *pipeline.Adjudicator
	repo        domain.Repository
	cache       domain.Cache
	policy      *policy.Service
	engine      *fraud.Engine
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(adjudicator *pipeline.Adjudicator, repo domain.Repository, cache domain.Cache, policySvc *policy.Service, engine *fraud.Engine, version string) *Handler {
	return &Handler{
		adjudicator: adjudicator,
		repo:        repo,
		cache:       cache,
		policy:      policySvc,
		engine:      engine,
		version:     version,
	}
}

// SubmitClaim handles POST /claims: runs the full adjudication pipeline
// synchronously and returns the decided claim.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var input domain.ClaimInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  "VALIDATION_ERROR",
			"error": "invalid JSON request body",
		})
		return
	}

	claim, err := h.adjudicator.Submit(ctx, tenantID, &input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, claim)
}

// GetClaim retrieves a claim by ID.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	claimID := chi.URLParam(r, "id")

	claim, err := h.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// ListClaimsResponse is the paginated response for GET /claims.
type ListClaimsResponse struct {
	Claims []*domain.Claim `json:"claims"`
	Total  int             `json:"total"`
	Skip   int             `json:"skip"`
	Limit  int             `json:"limit"`
}

// ListClaims returns claims for the tenant, optionally filtered by member.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	memberID := r.URL.Query().Get("memberId")
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	claims, total, err := h.repo.ListClaims(ctx, tenantID, memberID, skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ListClaimsResponse{
		Claims: claims,
		Total:  total,
		Skip:   skip,
		Limit:  limit,
	})
}

// FileAppeal handles POST /claims/{id}/appeal.
func (h *Handler) FileAppeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	claimID := chi.URLParam(r, "id")

	var req domain.AppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  "VALIDATION_ERROR",
			"error": "invalid JSON request body",
		})
		return
	}

	appeal, err := h.adjudicator.Appeal(ctx, tenantID, claimID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, appeal)
}

// GetAppeal retrieves an appeal by ID.
func (h *Handler) GetAppeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appealID := chi.URLParam(r, "id")

	appeal, err := h.repo.GetAppeal(ctx, tenantID, appealID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, appeal)
}

// GetPolicyTerms returns the policy terms the tenant is adjudicated against.
func (h *Handler) GetPolicyTerms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	terms, err := h.policy.Terms(ctx, tenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, terms)
}

// UpdatePolicyTerms stores tenant-specific policy terms.
func (h *Handler) UpdatePolicyTerms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var terms domain.PolicyTerms
	if err := json.NewDecoder(r.Body).Decode(&terms); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  "VALIDATION_ERROR",
			"error": "invalid JSON request body",
		})
		return
	}
	if terms.Version == "" || terms.AnnualLimit <= 0 || terms.PerClaimLimit <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  "VALIDATION_ERROR",
			"error": "version, annualLimit and perClaimLimit are required",
		})
		return
	}

	if err := h.policy.Save(ctx, tenantID, &terms); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("policy terms updated", "tenant_id", tenantID, "version", terms.Version)
	writeJSON(w, http.StatusOK, &terms)
}

// GetExclusions returns the exclusion groups and their keywords.
func (h *Handler) GetExclusions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	terms, err := h.policy.Terms(ctx, tenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exclusions": terms.Exclusions,
		"version":    terms.Version,
	})
}

// GetNetworkHospitals returns the cashless network hospital list.
func (h *Handler) GetNetworkHospitals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	terms, err := h.policy.Terms(ctx, tenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hospitals": terms.NetworkHospitals,
		"count":     len(terms.NetworkHospitals),
	})
}

// ListFraudRules returns all fraud rules loaded in the engine.
// Rules are loaded at startup and can be reloaded via POST /fraud/rules/reload.
func (h *Handler) ListFraudRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetFraudRule retrieves a fraud rule by ID from the loaded engine rules.
func (h *Handler) GetFraudRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"code":  "NOT_FOUND",
		"error": "fraud rule not found",
	})
}

// CreateFraudRuleRequest is the request body for creating a fraud rule.
type CreateFraudRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Flag        string  `json:"flag"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// CreateFraudRule creates a fraud rule and saves it to the database.
// Rules are saved globally so they apply to all tenants. After saving,
// call POST /fraud/rules/reload to hot-reload them into the engine.
func (h *Handler) CreateFraudRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateFraudRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  "VALIDATION_ERROR",
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Flag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  "VALIDATION_ERROR",
			"error": "id, name, expression, and flag are required",
		})
		return
	}
	if req.Weight < 0 || req.Weight > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  "VALIDATION_ERROR",
			"error": "weight must be between 0 and 1",
		})
		return
	}

	rule := &domain.FraudRuleConfig{
		ID:          req.ID,
		TenantID:    domain.GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Flag:        req.Flag,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression by attempting to load it.
	if err := h.engine.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":  "VALIDATION_ERROR",
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveFraudRule(ctx, domain.GlobalTenantID, rule); err != nil {
		slog.Error("failed to save fraud rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"code":  "INTERNAL_ERROR",
			"error": "failed to save fraud rule",
		})
		return
	}

	slog.Info("fraud rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /fraud/rules/reload to apply changes.",
	})
}

// ReloadFraudRules reloads the built-in rules plus all stored rules from
// the database into the engine, enabling hot-reload without a restart.
func (h *Handler) ReloadFraudRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stored, err := h.repo.ListFraudRules(ctx, domain.GlobalTenantID)
	if err != nil {
		slog.Error("failed to list fraud rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"code":  "INTERNAL_ERROR",
			"error": "failed to load fraud rules from database",
		})
		return
	}

	ruleset := append(fraud.BuiltinRules(), stored...)
	if err := h.engine.ReloadRules(ruleset); err != nil {
		slog.Error("failed to reload fraud rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"code":  "INTERNAL_ERROR",
			"error": "failed to reload fraud rules: " + err.Error(),
		})
		return
	}

	slog.Info("fraud rules reloaded", "count", len(ruleset))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "fraud rules reloaded successfully",
		"count":   len(ruleset),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeError maps adjudication sentinel errors to stable HTTP codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest,
			map[string]string{"code": "VALIDATION_ERROR", "error": err.Error()})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound,
			map[string]string{"code": "NOT_FOUND", "error": "not found"})
	case errors.Is(err, domain.ErrInvalidState):
		writeJSON(w, http.StatusConflict,
			map[string]string{"code": "INVALID_STATE", "error": err.Error()})
	case errors.Is(err, domain.ErrPolicyLookup):
		writeJSON(w, http.StatusServiceUnavailable,
			map[string]string{"code": "POLICY_UNAVAILABLE", "error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError,
			map[string]string{"code": "INTERNAL_ERROR", "error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
