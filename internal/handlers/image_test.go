package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinkflag/backend/internal/providers"
	"github.com/pinkflag/backend/internal/services"
)

// pngHeader is a minimal valid PNG signature for content sniffing.
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func multipartImageRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/image-search", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestImageHandler_SearchByURL(t *testing.T) {
	var gotInput services.ImageInput
	service := &MockReverseImageService{
		SearchImageFunc: func(ctx context.Context, userID string, in services.ImageInput) (*services.ImageSearchOutput, error) {
			gotInput = in
			return &services.ImageSearchOutput{
				Result:           &providers.ImageResult{TotalMatches: 2},
				Message:          "2 matches found. This image appears on multiple websites.",
				CreditsRemaining: 4,
			}, nil
		},
	}
	handler := NewImageHandler(service)

	body := `{"image_url": "https://example.com/photo.jpg"}`
	req := withTestUser(httptest.NewRequest("POST", "/api/image-search", strings.NewReader(body)), "user123")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.SearchImage(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.com/photo.jpg", gotInput.URL)
	assert.Empty(t, gotInput.Data)

	var resp ImageSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalMatches)
	assert.Equal(t, 4, resp.CreditsRemaining)
	assert.NotEmpty(t, resp.Message)
}

func TestImageHandler_SearchByUpload(t *testing.T) {
	var gotInput services.ImageInput
	service := &MockReverseImageService{
		SearchImageFunc: func(ctx context.Context, userID string, in services.ImageInput) (*services.ImageSearchOutput, error) {
			gotInput = in
			return &services.ImageSearchOutput{
				Result:  &providers.ImageResult{},
				Message: "No matches found. This image appears to be original or not indexed.",
			}, nil
		},
	}
	handler := NewImageHandler(service)

	req := withTestUser(multipartImageRequest(t, "image", "photo.png", pngHeader), "user123")
	w := httptest.NewRecorder()

	handler.SearchImage(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "photo.png", gotInput.Filename)
	assert.Equal(t, pngHeader, gotInput.Data)
	assert.Empty(t, gotInput.URL)
}

func TestImageHandler_UnsupportedUploadType(t *testing.T) {
	called := false
	service := &MockReverseImageService{
		SearchImageFunc: func(ctx context.Context, userID string, in services.ImageInput) (*services.ImageSearchOutput, error) {
			called = true
			return nil, nil
		},
	}
	handler := NewImageHandler(service)

	req := withTestUser(multipartImageRequest(t, "image", "doc.pdf", []byte("%PDF-1.4 not an image")), "user123")
	w := httptest.NewRecorder()

	handler.SearchImage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called, "an unsupported upload must be rejected before any charge")
}

func TestImageHandler_WrongFormField(t *testing.T) {
	handler := NewImageHandler(&MockReverseImageService{})

	req := withTestUser(multipartImageRequest(t, "file", "photo.png", pngHeader), "user123")
	w := httptest.NewRecorder()

	handler.SearchImage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageHandler_InvalidURL(t *testing.T) {
	handler := NewImageHandler(&MockReverseImageService{})

	body := `{"image_url": "ftp://example.com/photo.jpg"}`
	req := withTestUser(httptest.NewRequest("POST", "/api/image-search", strings.NewReader(body)), "user123")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.SearchImage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, isSupportedImage(pngHeader))
	assert.True(t, isSupportedImage([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}))
	assert.True(t, isSupportedImage([]byte("GIF89a")))
	assert.False(t, isSupportedImage([]byte("plain text file")))
}
