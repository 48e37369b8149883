// Package handlers processes HTTP requests for the account registry service.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claimable/account-registry-backend/api"
	"github.com/claimable/account-registry-backend/index"
	"github.com/claimable/account-registry-backend/interfaces"
	"github.com/claimable/account-registry-backend/metrics"
)

const (
	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024

	// adminRequestWindow bounds how stale a signed admin request may be.
	adminRequestWindow = 5 * time.Minute
)

// Handler serves the registry API. It exposes address lookup, idempotent
// account creation, the claim entry point, signature validation, and the
// admin signer-update operation.
type Handler struct {
	service interfaces.AccountService
	store   index.Store
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewHandler creates a request handler. store may be nil when no event index
// is configured; the listing endpoint then reports 404.
func NewHandler(service interfaces.AccountService, store index.Store, m *metrics.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		store:   store,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/account/{salt}", h.HandleGetAccount)
	r.Post("/api/account/{salt}", h.HandleCreateAccount)
	r.Post("/api/account/{salt}/claim", h.HandleClaimAccount)
	r.Get("/api/accounts", h.HandleListAccounts)
	r.Get("/api/registry/signer", h.HandleGetSigner)
	r.Post("/api/registry/signature", h.HandleCheckSignature)
	r.Post("/api/admin/signer", h.HandleUpdateSigner)
}

// HandleGetAccount returns the deterministic address and lifecycle state for
// a salt. Read-only; succeeds whether or not the account is deployed.
//
// URL format: GET /api/account/{salt}
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	salt, err := interfaces.NewSaltFromHex(chi.URLParam(r, "salt"))
	if err != nil {
		http.Error(w, "Invalid salt format", http.StatusBadRequest)
		return
	}

	status, err := h.service.AccountState(salt)
	if err != nil {
		h.log.Error("Failed to read account state", "err", err, "salt", salt.String())
		http.Error(w, "Failed to read account state", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, accountResponse(salt, status))
}

// HandleCreateAccount lazily deploys the account for a salt. Idempotent:
// repeated POSTs return the same address with 200.
//
// URL format: POST /api/account/{salt}
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	salt, err := interfaces.NewSaltFromHex(chi.URLParam(r, "salt"))
	if err != nil {
		http.Error(w, "Invalid salt format", http.StatusBadRequest)
		return
	}

	if _, err := h.service.CreateAccount(salt); err != nil {
		h.log.Error("Account creation failed", "err", err, "salt", salt.String())
		h.writeServiceError(w, err)
		return
	}
	h.metrics.AccountsCreated.Inc()

	status, err := h.service.AccountState(salt)
	if err != nil {
		h.log.Error("Failed to read account state", "err", err, "salt", salt.String())
		http.Error(w, "Failed to read account state", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, accountResponse(salt, status))
}

// HandleClaimAccount submits an off-chain-issued claim. Fails closed: an
// invalid or expired signature yields 401 with no state change.
//
// URL format: POST /api/account/{salt}/claim
// Request body: JSON, see api.ClaimRequest
func (h *Handler) HandleClaimAccount(w http.ResponseWriter, r *http.Request) {
	salt, err := interfaces.NewSaltFromHex(chi.URLParam(r, "salt"))
	if err != nil {
		http.Error(w, "Invalid salt format", http.StatusBadRequest)
		return
	}

	var req api.ClaimRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	owner, err := interfaces.NewAccountAddressFromHex(req.Owner)
	if err != nil {
		http.Error(w, "Invalid owner address", http.StatusBadRequest)
		return
	}
	if len(req.Message) != 32 {
		http.Error(w, "Invalid claim message: must be 32 bytes", http.StatusBadRequest)
		return
	}
	var message [32]byte
	copy(message[:], req.Message)

	addr, err := h.service.ClaimAccount(owner, salt, uint64(req.Expiration), message, req.Signature)
	if err != nil {
		h.metrics.ClaimsRejected.Inc()
		h.log.Info("Claim rejected", "err", err, "salt", salt.String(), "owner", owner.String())
		h.writeServiceError(w, err)
		return
	}
	h.metrics.ClaimsSucceeded.Inc()

	h.writeJSON(w, http.StatusOK, api.AccountResponse{
		Address:  addr.String(),
		Salt:     salt.String(),
		Deployed: true,
		Claimed:  true,
		Owner:    owner.String(),
	})
}

// HandleListAccounts pages through the event index.
//
// URL format: GET /api/accounts?limit=N&offset=M
func (h *Handler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Account index not configured", http.StatusNotFound)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.store.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		h.log.Error("Failed to list accounts", "err", err)
		http.Error(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, records)
}

// HandleGetSigner returns the registry's configured claim signer.
//
// URL format: GET /api/registry/signer
func (h *Handler) HandleGetSigner(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, api.NewSignerResponse(h.service.Signer()))
}

// HandleCheckSignature validates a signature against the registry's signer,
// the same path unclaimed accounts delegate their own signature checks to.
//
// URL format: POST /api/registry/signature
// Request body: JSON, see api.SignatureCheckRequest
func (h *Handler) HandleCheckSignature(w http.ResponseWriter, r *http.Request) {
	var req api.SignatureCheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Hash) != 32 {
		http.Error(w, "Invalid hash: must be 32 bytes", http.StatusBadRequest)
		return
	}
	var hash [32]byte
	copy(hash[:], req.Hash)

	magic, err := h.service.IsValidSignature(hash, req.Signature)
	if err != nil {
		h.log.Error("Signature check failed", "err", err)
		http.Error(w, "Signature check failed", http.StatusInternalServerError)
		return
	}
	h.metrics.SignatureChecks.Inc()

	h.writeJSON(w, http.StatusOK, signatureCheckResponse(magic))
}

// HandleUpdateSigner replaces the registry's claim signer. The request body
// carries a signature by the registry owner key; the recovered address is
// passed to the registry as the caller capability.
//
// URL format: POST /api/admin/signer
// Request body: JSON, see api.SignerUpdateRequest
func (h *Handler) HandleUpdateSigner(w http.ResponseWriter, r *http.Request) {
	var req api.SignerUpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	signer, err := interfaces.NewAccountAddressFromHex(req.Signer)
	if err != nil {
		http.Error(w, "Invalid signer address", http.StatusBadRequest)
		return
	}

	age := h.now().Sub(time.Unix(int64(req.Timestamp), 0))
	if age < -adminRequestWindow || age > adminRequestWindow {
		h.metrics.RequestsRejected.WithLabelValues("stale_admin_request").Inc()
		http.Error(w, "Request timestamp outside freshness window", http.StatusForbidden)
		return
	}

	caller, err := api.RecoverAdmin(signer, uint64(req.Timestamp), req.Signature)
	if err != nil {
		h.metrics.RequestsRejected.WithLabelValues("bad_admin_signature").Inc()
		http.Error(w, "Invalid admin signature", http.StatusForbidden)
		return
	}

	cfg, err := h.service.UpdateSigner(caller, signer)
	if err != nil {
		h.log.Info("Signer update rejected", "err", err, "caller", caller.String())
		h.writeServiceError(w, err)
		return
	}
	h.metrics.SignerUpdates.Inc()

	h.writeJSON(w, http.StatusOK, api.NewSignerResponse(cfg))
}

func signatureCheckResponse(magic [4]byte) api.SignatureCheckResponse {
	resp := api.SignatureCheckResponse{Valid: magic == interfaces.SignatureMagicValue}
	if resp.Valid {
		resp.MagicValue = magic[:]
	}
	return resp
}

func accountResponse(salt interfaces.Salt, status interfaces.AccountStatus) api.AccountResponse {
	resp := api.AccountResponse{
		Address:  status.Address.String(),
		Salt:     salt.String(),
		Deployed: status.Deployed,
		Claimed:  status.Claimed,
	}
	if !status.Owner.IsZero() {
		resp.Owner = status.Owner.String()
	}
	return resp
}

// writeServiceError maps the registry error taxonomy onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrUnauthorized):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, interfaces.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, interfaces.ErrClaimFailed):
		http.Error(w, "Claim failed", http.StatusConflict)
	case errors.Is(err, interfaces.ErrDeploymentFailed):
		http.Error(w, "Deployment failed", http.StatusInternalServerError)
	default:
		http.Error(w, fmt.Sprintf("Operation failed: %v", err), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
