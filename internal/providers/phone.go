package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pinkflag/backend/internal/config"
)

const ProviderPhoneLookup = "phone_lookup"

// PhoneResult is the uniform result shape for a reverse phone lookup.
type PhoneResult struct {
	PhoneNumber string                 `json:"phone_number"`
	CallerName  *string                `json:"caller_name,omitempty"`
	Carrier     *string                `json:"carrier,omitempty"`
	LineType    *string                `json:"line_type,omitempty"`
	Location    *string                `json:"location,omitempty"`
	FraudRisk   *string                `json:"fraud_risk,omitempty"`
	FraudScore  *int                   `json:"fraud_score,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// PhoneClient performs reverse lookups against the phone intelligence API.
// The API key lives server-side only.
type PhoneClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewPhoneClient(cfg config.ProviderConfig) *PhoneClient {
	return &PhoneClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether an API key is present.
func (c *PhoneClient) Configured() bool {
	return c.apiKey != ""
}

// The upstream uses a couple of alternate field names across versions.
type phoneAPIResponse struct {
	CallerName *string `json:"caller_name"`
	CNAM       *string `json:"cnam"`
	Carrier    *string `json:"carrier"`
	LineType   *string `json:"line_type"`
	Type       *string `json:"type"`
	Location   *string `json:"location"`
	FraudRisk  *string `json:"fraud_risk"`
	FraudScore *int    `json:"fraud_score"`
}

// Lookup queries the provider for a normalized (digits-only) number.
func (c *PhoneClient) Lookup(ctx context.Context, number string) (*PhoneResult, error) {
	params := url.Values{}
	params.Set("number", number)
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, decodeError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, callError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, callError(err)
	}

	var body phoneAPIResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, decodeError(err)
	}

	result := &PhoneResult{
		PhoneNumber: number,
		CallerName:  body.CallerName,
		Carrier:     body.Carrier,
		LineType:    body.LineType,
		Location:    body.Location,
		FraudRisk:   body.FraudRisk,
		FraudScore:  body.FraudScore,
	}
	if result.CallerName == nil {
		result.CallerName = body.CNAM
	}
	if result.LineType == nil {
		result.LineType = body.Type
	}

	// Keep the full provider payload for history display and debugging.
	var metadata map[string]interface{}
	if err := json.Unmarshal(raw, &metadata); err == nil {
		result.Metadata = metadata
	}

	return result, nil
}
