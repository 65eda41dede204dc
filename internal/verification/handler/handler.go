// Package handler exposes the verification read path over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qualinova/internal/platform/respond"
	"qualinova/internal/verification"
	"qualinova/pkg/domain"
)

type Handler struct {
	engine *verification.Engine
	logger *slog.Logger
}

func New(engine *verification.Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/certificates/{id}/verification", h.verify)
}

type reportDTO struct {
	CertificateID  string `json:"certificate_id"`
	SignatureValid bool   `json:"signature_valid"`
	ExpiryValid    bool   `json:"expiry_valid"`
	AuthorityValid bool   `json:"authority_valid"`
	Status         string `json:"status"`
	VerifiedAt     uint64 `json:"verified_at"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	report, err := h.engine.Verify(ctx, id)
	if err != nil {
		respond.Error(ctx, w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, reportDTO{
		CertificateID:  report.CertificateID.String(),
		SignatureValid: report.SignatureValid,
		ExpiryValid:    report.ExpiryValid,
		AuthorityValid: report.AuthorityValid,
		Status:         string(report.Status),
		VerifiedAt:     report.VerifiedAt,
	})
}
