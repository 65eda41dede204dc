// Package handler exposes registry administration over HTTP: initialization,
// admin handover, and the issuer set.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qualinova/internal/access"
	"qualinova/internal/jwtgrant"
	"qualinova/internal/platform/authz"
	"qualinova/internal/platform/middleware"
	"qualinova/internal/platform/respond"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
)

type Handler struct {
	guard  *access.Guard
	grants *jwtgrant.Service
	logger *slog.Logger
}

func New(guard *access.Guard, grants *jwtgrant.Service, logger *slog.Logger) *Handler {
	return &Handler{guard: guard, grants: grants, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/registry/init", h.initialize)
	r.Get("/registry/admin", h.admin)
	r.Post("/registry/admin/transfer", h.transferAdmin)
	r.Get("/registry/issuers", h.listIssuers)
	r.Post("/registry/issuers", h.addIssuer)
	r.Get("/registry/issuers/{identity}", h.isIssuer)
	r.Delete("/registry/issuers/{identity}", h.removeIssuer)
}

// initialize records the authenticated caller as the first admin.
func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	if err := h.guard.Initialize(ctx, actor); err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]string{"admin": actor.String()})
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := h.guard.Admin(ctx)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"admin": admin.String()})
}

type transferAdminRequest struct {
	NewAdmin      string `json:"new_admin"`
	HandoverGrant string `json:"handover_grant"`
}

// transferAdmin hands the admin role over. The outgoing admin co-authorizes
// with a handover grant token; when the caller is the admin their own
// authentication suffices.
func (h *Handler) transferAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req transferAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(ctx, w, h.logger, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	newAdmin, err := domain.ParseIdentity(req.NewAdmin)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}

	grants := authz.NewGrants(middleware.GetActor(ctx))
	if req.HandoverGrant != "" {
		granter, err := h.grants.ValidateGrant(req.HandoverGrant, jwtgrant.ActionHandoverAdmin)
		if err != nil {
			respond.Error(ctx, w, h.logger, err)
			return
		}
		grants = grants.With(granter)
	}

	if err := h.guard.TransferAdmin(ctx, grants, newAdmin); err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"admin": newAdmin.String()})
}

type issuerRequest struct {
	Issuer string `json:"issuer"`
}

func (h *Handler) addIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req issuerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(ctx, w, h.logger, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	issuer, err := domain.ParseIdentity(req.Issuer)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	added, err := h.guard.AddIssuer(ctx, middleware.GetActor(ctx), issuer)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	respond.JSON(w, status, map[string]bool{"added": added})
}

func (h *Handler) removeIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuer, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	removed, err := h.guard.RemoveIssuer(ctx, middleware.GetActor(ctx), issuer)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) isIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	ok, err := h.guard.IsIssuer(ctx, identity)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"issuer": ok})
}

func (h *Handler) listIssuers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuers, err := h.guard.Issuers(ctx)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	out := make([]string, len(issuers))
	for i, issuer := range issuers {
		out[i] = issuer.String()
	}
	respond.JSON(w, http.StatusOK, map[string][]string{"issuers": out})
}
