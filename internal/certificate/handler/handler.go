// Package handler exposes the certificate lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"qualinova/internal/certificate/models"
	"qualinova/internal/certificate/service"
	"qualinova/internal/jwtgrant"
	"qualinova/internal/platform/authz"
	"qualinova/internal/platform/middleware"
	"qualinova/internal/platform/respond"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
)

type Handler struct {
	svc    *service.Service
	grants *jwtgrant.Service
	logger *slog.Logger
}

func New(svc *service.Service, grants *jwtgrant.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, grants: grants, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/certificates", h.issue)
	r.Post("/certificates/batch", h.batchIssue)
	r.Get("/certificates/count", h.totalIssued)
	r.Get("/certificates/{id}", h.get)
	r.Post("/certificates/{id}/transfer", h.transfer)
	r.Post("/certificates/{id}/revoke", h.revoke)
	r.Get("/owners/{identity}/certificates", h.listByOwner)
	r.Get("/owners/{identity}/certificates/count", h.countByOwner)
	r.Get("/issuers/{identity}/certificates", h.listByIssuer)
	r.Get("/issuers/{identity}/certificates/count", h.countByIssuer)
}

type metadataDTO struct {
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	AchievementType string            `json:"achievement_type"`
	AdditionalData  map[string]string `json:"additional_data,omitempty"`
}

func (d metadataDTO) toModel() (models.Metadata, error) {
	meta := models.Metadata{
		Title:           d.Title,
		Description:     d.Description,
		AchievementType: d.AchievementType,
	}
	if len(d.AdditionalData) > 0 {
		meta.AdditionalData = make(map[string]domain.Digest, len(d.AdditionalData))
		for key, value := range d.AdditionalData {
			digest, err := domain.ParseDigest(value)
			if err != nil {
				return models.Metadata{}, dErrors.New(dErrors.CodeInvalidInput,
					"additional data value for "+key+" must be a 32-byte hex digest")
			}
			meta.AdditionalData[key] = digest
		}
	}
	return meta, nil
}

func metadataFromModel(meta models.Metadata) metadataDTO {
	dto := metadataDTO{
		Title:           meta.Title,
		Description:     meta.Description,
		AchievementType: meta.AchievementType,
	}
	if len(meta.AdditionalData) > 0 {
		dto.AdditionalData = make(map[string]string, len(meta.AdditionalData))
		for key, digest := range meta.AdditionalData {
			dto.AdditionalData[key] = digest.String()
		}
	}
	return dto
}

type issueItemDTO struct {
	Owner      string      `json:"owner"`
	Metadata   metadataDTO `json:"metadata"`
	ExpiresAt  *uint64     `json:"expires_at,omitempty"`
	Signature  string      `json:"signature"`
	OwnerGrant string      `json:"owner_grant"`
}

// toRequest validates the item and registers the owner's acceptance grant.
func (h *Handler) toRequest(item issueItemDTO, grants authz.Grants) (service.IssueRequest, authz.Grants, error) {
	owner, err := domain.ParseIdentity(item.Owner)
	if err != nil {
		return service.IssueRequest{}, grants, err
	}
	meta, err := item.Metadata.toModel()
	if err != nil {
		return service.IssueRequest{}, grants, err
	}
	signature, err := hex.DecodeString(item.Signature)
	if err != nil {
		return service.IssueRequest{}, grants, dErrors.New(dErrors.CodeInvalidInput, "signature must be hex encoded")
	}
	if item.OwnerGrant != "" {
		granter, err := h.grants.ValidateGrant(item.OwnerGrant, jwtgrant.ActionAcceptCertificate)
		if err != nil {
			return service.IssueRequest{}, grants, err
		}
		grants = grants.With(granter)
	}
	req := service.IssueRequest{
		Owner:     owner,
		Metadata:  meta,
		ExpiresAt: item.ExpiresAt,
		Signature: signature,
	}
	return req, grants, nil
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var item issueItemDTO
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respond.Error(ctx, w, h.logger, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	actor := middleware.GetActor(ctx)
	req, grants, err := h.toRequest(item, authz.NewGrants(actor))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	id, err := h.svc.Issue(ctx, actor, grants, req)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]string{"certificate_id": id.String()})
}

type batchIssueDTO struct {
	Items []issueItemDTO `json:"items"`
}

func (h *Handler) batchIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body batchIssueDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(ctx, w, h.logger, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	actor := middleware.GetActor(ctx)
	grants := authz.NewGrants(actor)
	reqs := make([]service.IssueRequest, 0, len(body.Items))
	for _, item := range body.Items {
		req, updated, err := h.toRequest(item, grants)
		if err != nil {
			respond.Error(ctx, w, h.logger, err)
			return
		}
		grants = updated
		reqs = append(reqs, req)
	}
	ids, err := h.svc.BatchIssue(ctx, actor, grants, reqs)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	respond.JSON(w, http.StatusCreated, map[string][]string{"certificate_ids": out})
}

type certificateDTO struct {
	ID        string      `json:"id"`
	Owner     string      `json:"owner"`
	Issuer    string      `json:"issuer"`
	Metadata  metadataDTO `json:"metadata"`
	IssuedAt  uint64      `json:"issued_at"`
	ExpiresAt *uint64     `json:"expires_at,omitempty"`
	Revoked   bool        `json:"revoked"`
	Signature string      `json:"signature"`
}

func certificateFromModel(cert models.Certificate) certificateDTO {
	return certificateDTO{
		ID:        cert.ID.String(),
		Owner:     cert.Owner.String(),
		Issuer:    cert.Issuer.String(),
		Metadata:  metadataFromModel(cert.Metadata),
		IssuedAt:  cert.IssuedAt,
		ExpiresAt: cert.ExpiresAt,
		Revoked:   cert.Revoked,
		Signature: hex.EncodeToString(cert.Signature),
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	cert, err := h.svc.Get(ctx, id)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, certificateFromModel(cert))
}

type transferDTO struct {
	NewOwner     string `json:"new_owner"`
	ReleaseGrant string `json:"release_grant"`
	AcceptGrant  string `json:"accept_grant"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	var body transferDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(ctx, w, h.logger, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	newOwner, err := domain.ParseIdentity(body.NewOwner)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}

	grants := authz.NewGrants(middleware.GetActor(ctx))
	if body.ReleaseGrant != "" {
		granter, err := h.grants.ValidateGrant(body.ReleaseGrant, jwtgrant.ActionTransferOut)
		if err != nil {
			respond.Error(ctx, w, h.logger, err)
			return
		}
		grants = grants.With(granter)
	}
	if body.AcceptGrant != "" {
		granter, err := h.grants.ValidateGrant(body.AcceptGrant, jwtgrant.ActionTransferIn)
		if err != nil {
			respond.Error(ctx, w, h.logger, err)
			return
		}
		grants = grants.With(granter)
	}

	transferred, err := h.svc.Transfer(ctx, grants, id, newOwner)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"transferred": transferred})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	revoked, err := h.svc.Revoke(ctx, middleware.GetActor(ctx), id)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

func (h *Handler) listByOwner(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListByOwner)
}

func (h *Handler) listByIssuer(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListByIssuer)
}

func (h *Handler) list(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, id domain.Identity, start, limit int) ([]models.Certificate, error),
) {
	ctx := r.Context()
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	start, limit, err := pageParams(r)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	certs, err := fetch(ctx, identity, start, limit)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	out := make([]certificateDTO, len(certs))
	for i, cert := range certs {
		out[i] = certificateFromModel(cert)
	}
	respond.JSON(w, http.StatusOK, map[string]any{"certificates": out, "start": start, "limit": limit})
}

func (h *Handler) countByOwner(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, h.svc.CountByOwner)
}

func (h *Handler) countByIssuer(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, h.svc.CountByIssuer)
}

func (h *Handler) count(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, id domain.Identity) (int, error),
) {
	ctx := r.Context()
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	n, err := fetch(ctx, identity)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) totalIssued(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.svc.TotalIssued(ctx)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]uint64{"count": n})
}

func pageParams(r *http.Request) (int, int, error) {
	start, limit := 0, 20
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, dErrors.New(dErrors.CodeInvalidInput, "start must be an integer")
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer")
		}
		limit = parsed
	}
	return start, limit, nil
}
