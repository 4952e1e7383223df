package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pinkflag/backend/internal/config"
)

// Provider identifiers recorded on the search row
const (
	ProviderOffenderRegistry = "offender_registry"
	ProviderNameFallback     = "fallback_registry"
	ProviderMock             = "mock"
)

// NameQuery holds the normalized parameters of a name search.
type NameQuery struct {
	FirstName   string
	LastName    string
	PhoneNumber string
	ZipCode     string
}

// NameResult is the uniform result shape for name and image-adjacent
// registry lookups. Optional fields are nil when the provider omits them.
type NameResult struct {
	ID                 string   `json:"id"`
	FullName           string   `json:"fullName"`
	Age                *int     `json:"age,omitempty"`
	City               *string  `json:"city,omitempty"`
	State              *string  `json:"state,omitempty"`
	OffenseDescription *string  `json:"offenseDescription,omitempty"`
	RegistrationDate   *string  `json:"registrationDate,omitempty"`
	Distance           *float64 `json:"distance,omitempty"`
	Address            *string  `json:"address,omitempty"`
}

// NameService queries the primary registry and falls back to a secondary
// provider on failure. With no API keys configured it returns deterministic
// development data instead of calling out.
type NameService struct {
	primary  *registryClient
	fallback *fallbackClient
	logger   *slog.Logger
}

func NewNameService(primary, fallback config.ProviderConfig, logger *slog.Logger) *NameService {
	s := &NameService{logger: logger}

	if primary.APIKey != "" {
		s.primary = &registryClient{
			apiKey:  primary.APIKey,
			baseURL: primary.BaseURL,
			client:  &http.Client{Timeout: primary.Timeout},
		}
	}
	if fallback.APIKey != "" {
		s.fallback = &fallbackClient{
			apiKey:  fallback.APIKey,
			baseURL: fallback.BaseURL,
			client:  &http.Client{Timeout: fallback.Timeout},
		}
	}

	return s
}

// Configured reports whether any real registry is wired. When false, Search
// serves development data.
func (s *NameService) Configured() bool {
	return s.primary != nil || s.fallback != nil
}

// Search tries the primary registry, then the fallback (which requires a ZIP
// code). It returns the providers attempted in order; on total failure the
// error is the classified failure of the last provider tried.
func (s *NameService) Search(ctx context.Context, q NameQuery) ([]NameResult, []string, error) {
	if s.primary == nil && s.fallback == nil {
		// Development mode: no keys configured.
		return mockNameResults(q), []string{ProviderMock}, nil
	}

	tried := make([]string, 0, 2)
	var lastErr error

	if s.primary != nil {
		tried = append(tried, ProviderOffenderRegistry)
		results, err := s.primary.search(ctx, q)
		if err == nil {
			return results, tried, nil
		}
		lastErr = err
		s.logger.Warn("primary name registry failed",
			slog.String("provider", ProviderOffenderRegistry),
			slog.Any("error", err),
		)
	}

	if s.fallback != nil && q.ZipCode != "" {
		tried = append(tried, ProviderNameFallback)
		results, err := s.fallback.search(ctx, q)
		if err == nil {
			return results, tried, nil
		}
		lastErr = err
		s.logger.Warn("fallback name registry failed",
			slog.String("provider", ProviderNameFallback),
			slog.Any("error", err),
		)
	}

	return nil, tried, lastErr
}

// registryClient queries the primary offender registry API.
type registryClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type registryResponse struct {
	Offenders []struct {
		UUID             string `json:"uuid"`
		Name             string `json:"name"`
		Age              string `json:"age"`
		City             string `json:"city"`
		State            string `json:"state"`
		Crime            string `json:"crime"`
		RegistrationDate string `json:"registrationDate"`
		Address          string `json:"address"`
	} `json:"offenders"`
}

func (c *registryClient) search(ctx context.Context, q NameQuery) ([]NameResult, error) {
	params := url.Values{}
	params.Set("firstName", q.FirstName)
	params.Set("key", c.apiKey)
	if q.LastName != "" {
		params.Set("lastName", q.LastName)
	}
	if q.ZipCode != "" {
		params.Set("zipcode", q.ZipCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/sexoffender?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, decodeError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, callError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	var body registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, decodeError(err)
	}

	results := make([]NameResult, 0, len(body.Offenders))
	for _, o := range body.Offenders {
		r := NameResult{
			ID:       o.UUID,
			FullName: o.Name,
		}
		// Registry reports age as a string, sometimes blank.
		if trimmed := strings.TrimSpace(o.Age); trimmed != "" {
			if age, err := strconv.Atoi(trimmed); err == nil {
				r.Age = &age
			}
		}
		r.City = optional(o.City)
		r.State = optional(o.State)
		r.OffenseDescription = optional(o.Crime)
		r.RegistrationDate = optional(o.RegistrationDate)
		address := o.Address
		if address == "" {
			address = fmt.Sprintf("%s, %s", o.City, o.State)
		}
		r.Address = &address
		results = append(results, r)
	}

	return results, nil
}

// fallbackClient queries the secondary registry; it only supports
// ZIP-scoped searches.
type fallbackClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type fallbackResponse struct {
	Offenders []struct {
		ID               json.Number `json:"id"`
		Name             string      `json:"name"`
		Age              *int        `json:"age"`
		City             string      `json:"city"`
		State            string      `json:"state"`
		Charges          string      `json:"charges"`
		RegistrationDate string      `json:"registration_date"`
		DistanceMiles    *float64    `json:"distance_miles"`
		Location         string      `json:"location"`
	} `json:"offenders"`
}

func (c *fallbackClient) search(ctx context.Context, q NameQuery) ([]NameResult, error) {
	params := url.Values{}
	params.Set("first_name", q.FirstName)
	params.Set("zip_code", q.ZipCode)
	if q.LastName != "" {
		params.Set("last_name", q.LastName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/offenders?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, decodeError(err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, callError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	var body fallbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, decodeError(err)
	}

	results := make([]NameResult, 0, len(body.Offenders))
	for _, o := range body.Offenders {
		r := NameResult{
			ID:       o.ID.String(),
			FullName: o.Name,
			Age:      o.Age,
			Distance: o.DistanceMiles,
		}
		r.City = optional(o.City)
		r.State = optional(o.State)
		r.OffenseDescription = optional(o.Charges)
		r.RegistrationDate = optional(o.RegistrationDate)
		r.Address = optional(o.Location)
		results = append(results, r)
	}

	return results, nil
}

// mockNameResults returns deterministic development data when no registry
// key is configured.
func mockNameResults(q NameQuery) []NameResult {
	lastName := q.LastName
	if lastName == "" {
		lastName = "Doe"
	}

	age1, age2 := 45, 38
	city1, state1 := "San Francisco", "CA"
	city2 := "Oakland"
	offense := "Mock offense - API key not configured"
	addr1 := "San Francisco, CA"
	addr2 := "Oakland, CA"
	date1, date2 := "2020-01-15", "2018-06-22"

	return []NameResult{
		{
			ID:                 "mock-1",
			FullName:           fmt.Sprintf("%s %s", q.FirstName, lastName),
			Age:                &age1,
			City:               &city1,
			State:              &state1,
			OffenseDescription: &offense,
			RegistrationDate:   &date1,
			Address:            &addr1,
		},
		{
			ID:                 "mock-2",
			FullName:           fmt.Sprintf("%s Smith", q.FirstName),
			Age:                &age2,
			City:               &city2,
			State:              &state1,
			OffenseDescription: &offense,
			RegistrationDate:   &date2,
			Address:            &addr2,
		},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
