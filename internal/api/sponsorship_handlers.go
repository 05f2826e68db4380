package api

import (
	"net/http"

	"github.com/onnwee/reelcast/internal/sponsorship"
)

// SponsorshipHandlers serves the sponsorship guidelines endpoints.
type SponsorshipHandlers struct {
	svc *sponsorship.Service
}

// NewSponsorshipHandlers creates a new SponsorshipHandlers instance.
func NewSponsorshipHandlers(svc *sponsorship.Service) *SponsorshipHandlers {
	return &SponsorshipHandlers{svc: svc}
}

type acceptGuidelinesRequest struct {
	Version string `json:"version,omitempty"`
}

type acceptGuidelinesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// Accept handles POST /v1/creators/{userId}/guidelines. The body is optional;
// an omitted version means the current one.
func (h *SponsorshipHandlers) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptGuidelinesRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			WriteAppError(w, r, err)
			return
		}
	}
	caller := callerFrom(r)
	created, err := h.svc.Accept(r.Context(), caller, r.PathValue("userId"), req.Version, caller.IPAddress)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	version := req.Version
	if version == "" {
		version = h.svc.CurrentVersion()
	}
	resp := acceptGuidelinesResponse{Success: true, Message: "Guidelines accepted", Version: version}
	status := http.StatusCreated
	if !created {
		resp.Message = "Guidelines already accepted"
		status = http.StatusOK
	}
	writeJSON(w, r, status, resp)
}

// Status handles GET /v1/creators/{userId}/guidelines.
func (h *SponsorshipHandlers) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.HasAccepted(r.Context(), callerFrom(r), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}
