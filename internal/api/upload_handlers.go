package api

import (
	"net/http"

	"github.com/onnwee/reelcast/internal/upload"
)

// UploadHandlers holds dependencies for upload HTTP handlers.
type UploadHandlers struct {
	uploadService *upload.Service
}

// NewUploadHandlers creates a new UploadHandlers instance.
func NewUploadHandlers(uploadService *upload.Service) *UploadHandlers {
	return &UploadHandlers{uploadService: uploadService}
}

// SignUpload handles POST /v1/uploads/sign. The returned URL accepts a single
// PUT of exactly size_bytes with the given content type.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	var req upload.SignedURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	signed, err := h.uploadService.GenerateSignedURL(r.Context(), callerFrom(r), req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, signed)
}
