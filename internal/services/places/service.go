package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/leadforge/internal/common"
	"github.com/ternarybob/leadforge/internal/models"
)

// Service scrapes Google Maps business listings through the Places
// API: a text search for the query, then a details lookup per result
// for phone and website. Implements interfaces.Scraper.
type Service struct {
	config  *common.MapsConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewService creates a places service from config
func NewService(config *common.MapsConfig, logger arbor.ILogger) (*Service, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("maps API key is required")
	}

	timeout := 30 * time.Second
	if config.RequestTimeout != "" {
		parsed, err := time.ParseDuration(config.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid maps request timeout '%s': %w", config.RequestTimeout, err)
		}
		timeout = parsed
	}

	rps := config.RatePerSecond
	if rps <= 0 {
		rps = 2
	}

	return &Service{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}, nil
}

type textSearchResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error_message"`
	Results []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           *float64 `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		PriceLevel       *int     `json:"price_level"`
		Types            []string `json:"types"`
		Photos           []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
		OpeningHours *struct {
			OpenNow bool `json:"open_now"`
		} `json:"opening_hours"`
		BusinessStatus string `json:"business_status"`
	} `json:"results"`
	NextPageToken string `json:"next_page_token"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		FormattedPhoneNumber string `json:"formatted_phone_number"`
		InternationalPhone   string `json:"international_phone_number"`
		Website              string `json:"website"`
		URL                  string `json:"url"`
	} `json:"result"`
}

// Scrape runs a text search and hydrates each result with details.
// A failed search is a total failure; a failed details lookup only
// degrades that one lead.
func (s *Service) Scrape(ctx context.Context, query string, maxResults int) ([]*models.Lead, error) {
	if maxResults <= 0 {
		maxResults = 20
	}

	s.logger.Info().
		Str("query", query).
		Int("max_results", maxResults).
		Msg("Searching Google Maps")

	var leads []*models.Lead
	pageToken := ""

	for len(leads) < maxResults {
		page, nextToken, err := s.textSearch(ctx, query, pageToken)
		if err != nil {
			return nil, err
		}
		leads = append(leads, page...)
		if nextToken == "" || len(page) == 0 {
			break
		}
		pageToken = nextToken
		// Page tokens need a moment before they become valid.
		time.Sleep(2 * time.Second)
	}

	if len(leads) > maxResults {
		leads = leads[:maxResults]
	}

	for _, lead := range leads {
		if err := s.hydrateDetails(ctx, lead); err != nil {
			s.logger.Warn().
				Str("place_id", lead.PlaceID).
				Err(err).
				Msg("Place details lookup failed")
		}
		lead.SourceQuery = query
		lead.Stage = models.StageRaw
	}

	s.logger.Info().
		Str("query", query).
		Int("results", len(leads)).
		Msg("Maps search complete")
	return leads, nil
}

func (s *Service) textSearch(ctx context.Context, query, pageToken string) ([]*models.Lead, string, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", s.config.APIKey)
	if pageToken != "" {
		params.Set("pagetoken", pageToken)
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/textsearch/json?" + params.Encode()

	var resp textSearchResponse
	if err := s.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, "", err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, "", fmt.Errorf("places search failed: %s %s", resp.Status, resp.Error)
	}

	leads := make([]*models.Lead, 0, len(resp.Results))
	for _, r := range resp.Results {
		lead := &models.Lead{
			ID:          common.NewLeadID(),
			Stage:       models.StageRaw,
			PlaceID:     r.PlaceID,
			Name:        r.Name,
			Address:     r.FormattedAddress,
			Rating:      r.Rating,
			ReviewCount: r.UserRatingsTotal,
			PhotosCount: len(r.Photos),
			HasHours:    r.OpeningHours != nil,
			IsClaimed:   r.BusinessStatus == "OPERATIONAL",
		}
		if len(r.Types) > 0 {
			lead.Category = strings.ReplaceAll(r.Types[0], "_", " ")
		}
		if r.PriceLevel != nil {
			lead.PriceLevel = strings.Repeat("$", *r.PriceLevel)
		}
		leads = append(leads, lead)
	}
	return leads, resp.NextPageToken, nil
}

func (s *Service) hydrateDetails(ctx context.Context, lead *models.Lead) error {
	if lead.PlaceID == "" {
		return nil
	}

	params := url.Values{}
	params.Set("place_id", lead.PlaceID)
	params.Set("fields", "formatted_phone_number,international_phone_number,website,url")
	params.Set("key", s.config.APIKey)

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/details/json?" + params.Encode()

	var resp detailsResponse
	if err := s.getJSON(ctx, endpoint, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return fmt.Errorf("place details failed: %s", resp.Status)
	}

	lead.Phone = resp.Result.InternationalPhone
	if lead.Phone == "" {
		lead.Phone = resp.Result.FormattedPhoneNumber
	}
	lead.Website = resp.Result.Website
	lead.MapsURL = resp.Result.URL
	return nil
}

// getJSON performs a rate-limited GET and decodes the JSON body. API
// keys are redacted from logged URLs.
func (s *Service) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("url", strings.Replace(endpoint, s.config.APIKey, common.RedactKey(s.config.APIKey), 1)).
		Msg("Places API request")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("places API returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
