package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/pinkflag/backend/internal/config"
)

const ProviderImageSearch = "image_search"

// ImageMatch is one site where the searched image was found.
type ImageMatch struct {
	Domain    string  `json:"domain"`
	PageURL   string  `json:"page_url"`
	ImageURL  *string `json:"image_url,omitempty"`
	CrawlDate *string `json:"crawl_date,omitempty"`
}

// ImageResult is the uniform result of a reverse image search.
type ImageResult struct {
	TotalMatches   int          `json:"total_matches"`
	TotalBacklinks int          `json:"total_backlinks"`
	Matches        []ImageMatch `json:"results"`
}

// ImageClient performs reverse image searches against the image index API.
type ImageClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewImageClient(cfg config.ProviderConfig) *ImageClient {
	return &ImageClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether an API key is present.
func (c *ImageClient) Configured() bool {
	return c.apiKey != ""
}

type imageAPIResponse struct {
	TotalMatches   int `json:"total_matches"`
	TotalBacklinks int `json:"total_backlinks"`
	Matches        []struct {
		Domain    string  `json:"domain"`
		PageURL   string  `json:"page_url"`
		ImageURL  *string `json:"image_url"`
		CrawlDate *string `json:"crawl_date"`
	} `json:"matches"`
}

// SearchByURL searches the index for an image referenced by URL.
func (c *ImageClient) SearchByURL(ctx context.Context, imageURL string) (*ImageResult, error) {
	params := url.Values{}
	params.Set("url", imageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/search/?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, decodeError(err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	return c.do(req)
}

// SearchByData searches the index with raw image bytes (client upload).
func (c *ImageClient) SearchByData(ctx context.Context, data []byte, filename string) (*ImageResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, decodeError(err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, decodeError(err)
	}
	if err := writer.Close(); err != nil {
		return nil, decodeError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/search/", c.baseURL), &buf)
	if err != nil {
		return nil, decodeError(err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *ImageClient) do(req *http.Request) (*ImageResult, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, callError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	var body imageAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, decodeError(err)
	}

	result := &ImageResult{
		TotalMatches:   body.TotalMatches,
		TotalBacklinks: body.TotalBacklinks,
		Matches:        make([]ImageMatch, 0, len(body.Matches)),
	}
	for _, m := range body.Matches {
		result.Matches = append(result.Matches, ImageMatch{
			Domain:    m.Domain,
			PageURL:   m.PageURL,
			ImageURL:  m.ImageURL,
			CrawlDate: m.CrawlDate,
		})
	}

	return result, nil
}

// RemainingSearches returns the provider-side search quota left on the
// account, for the status endpoint.
func (c *ImageClient) RemainingSearches(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/remaining/", c.baseURL), nil)
	if err != nil {
		return 0, decodeError(err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, callError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError(resp.StatusCode)
	}

	var body struct {
		RemainingSearches int `json:"remaining_searches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, decodeError(err)
	}

	return body.RemainingSearches, nil
}
