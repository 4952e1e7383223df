package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pinkflag/backend/internal/auth"
	"github.com/pinkflag/backend/internal/providers"
	"github.com/pinkflag/backend/internal/services"
	pkghttp "github.com/pinkflag/backend/pkg/http"
)

// maxImageUploadBytes caps uploads at 10MB.
const maxImageUploadBytes = 10 << 20

// ReverseImageService defines the interface for reverse image search logic
type ReverseImageService interface {
	SearchImage(ctx context.Context, userID string, in services.ImageInput) (*services.ImageSearchOutput, error)
}

// ImageHandler handles reverse image search HTTP requests
type ImageHandler struct {
	service ReverseImageService
}

// NewImageHandler creates a new ImageHandler
func NewImageHandler(service ReverseImageService) *ImageHandler {
	return &ImageHandler{service: service}
}

// ImageSearchRequest represents the JSON request body for a URL-based search
type ImageSearchRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
}

// ImageSearchResponse represents a completed reverse image search
type ImageSearchResponse struct {
	TotalMatches     int                    `json:"total_matches"`
	TotalBacklinks   int                    `json:"total_backlinks"`
	Message          string                 `json:"message"`
	Matches          []providers.ImageMatch `json:"matches"`
	CreditsRemaining int                    `json:"credits_remaining"`
}

// SearchImage runs a reverse image search, charging one credit. The image is
// given either as a JSON body with an image_url or as a multipart upload
// under the "image" field.
//
// @Summary Reverse search an image
// @Accept json,mpfd
// @Produce json
// @Success 200 {object} ImageSearchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} InsufficientCreditsResponse
// @Failure 413 {object} ErrorResponse
// @Router /api/image-search [post]
func (h *ImageHandler) SearchImage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	input, ok := h.parseInput(w, r)
	if !ok {
		return
	}

	out, err := h.service.SearchImage(r.Context(), claims.UserID(), input)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	matches := out.Result.Matches
	if matches == nil {
		matches = []providers.ImageMatch{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, ImageSearchResponse{
		TotalMatches:     out.Result.TotalMatches,
		TotalBacklinks:   out.Result.TotalBacklinks,
		Message:          out.Message,
		Matches:          matches,
		CreditsRemaining: out.CreditsRemaining,
	})
}

// parseInput extracts the image input from either a multipart upload or a
// JSON body. All validation happens here, before any credit is charged.
func (h *ImageHandler) parseInput(w http.ResponseWriter, r *http.Request) (services.ImageInput, bool) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes+4096)
		if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
			pkghttp.WriteError(w, http.StatusRequestEntityTooLarge, "image_too_large", "Image must be 10MB or smaller")
			return services.ImageInput{}, false
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			pkghttp.WriteBadRequest(w, "Missing image file in form field 'image'")
			return services.ImageInput{}, false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Could not read uploaded image")
			return services.ImageInput{}, false
		}

		if !isSupportedImage(data) {
			pkghttp.WriteBadRequest(w, "Unsupported image type. Use JPEG, PNG, GIF or WebP")
			return services.ImageInput{}, false
		}

		return services.ImageInput{Data: data, Filename: header.Filename}, true
	}

	var req ImageSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return services.ImageInput{}, false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return services.ImageInput{}, false
	}
	if !strings.HasPrefix(req.ImageURL, "http://") && !strings.HasPrefix(req.ImageURL, "https://") {
		pkghttp.WriteBadRequest(w, "image_url must be an http or https URL")
		return services.ImageInput{}, false
	}

	return services.ImageInput{URL: req.ImageURL}, true
}

// isSupportedImage sniffs the upload content. The filename extension is not
// trusted.
func isSupportedImage(data []byte) bool {
	switch http.DetectContentType(data) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
