package enrich

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/common"
	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/models"
)

const maxBodySize = 2 * 1024 * 1024

// Service enriches leads with website-derived contact and social
// data. Implements interfaces.Enricher: it never fails, degrading to
// minimal enrichment (messaging handle only) when the website cannot
// be fetched or parsed.
type Service struct {
	config      *common.EnrichConfig
	client      *http.Client
	cache       interfaces.KVCache // may be nil
	logger      arbor.ILogger
	browserWait time.Duration
}

// NewService creates an enrichment service. cache may be nil.
func NewService(config *common.EnrichConfig, cache interfaces.KVCache, logger arbor.ILogger) *Service {
	timeout := 15 * time.Second
	if config.RequestTimeout != "" {
		if parsed, err := time.ParseDuration(config.RequestTimeout); err == nil {
			timeout = parsed
		}
	}
	browserWait := 3 * time.Second
	if config.BrowserWait != "" {
		if parsed, err := time.ParseDuration(config.BrowserWait); err == nil {
			browserWait = parsed
		}
	}

	return &Service{
		config: config,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		cache:       cache,
		logger:      logger,
		browserWait: browserWait,
	}
}

// Enrich derives the messaging handle and, when the lead has a
// website, extracts emails, social links, and quality signals from it.
func (s *Service) Enrich(ctx context.Context, lead *models.Lead) *models.Lead {
	lead.WhatsApp = common.PhoneToWhatsApp(lead.Phone)
	lead.Stage = models.StageEnriched

	if lead.Website == "" {
		return lead
	}
	lead.WebsiteHTTPS = strings.HasPrefix(lead.Website, "https")

	html, reachable := s.fetchSite(ctx, lead.Website)
	lead.WebsiteReachable = reachable
	if !reachable || html == "" {
		return lead
	}

	if err := parsePage(html, lead); err != nil {
		s.logger.Debug().
			Str("place_id", lead.PlaceID).
			Str("website", lead.Website).
			Err(err).
			Msg("Website parse failed")
	}
	return lead
}

// fetchSite fetches the site HTML, consulting the cache first and
// falling back to a headless browser render when configured.
func (s *Service) fetchSite(ctx context.Context, site string) (string, bool) {
	cacheKey := "site:" + site
	if s.cache != nil {
		var cached string
		if ok, err := s.cache.Get(cacheKey, &cached); err == nil && ok {
			return cached, true
		}
	}

	html, err := s.fetchHTTP(ctx, site)
	if err != nil {
		s.logger.Debug().Str("website", site).Err(err).Msg("Website fetch failed")
		if !s.config.UseBrowser {
			return "", false
		}
		html, err = s.fetchBrowser(ctx, site)
		if err != nil {
			s.logger.Debug().Str("website", site).Err(err).Msg("Browser render failed")
			return "", false
		}
	}

	if s.cache != nil && html != "" {
		if err := s.cache.Set(cacheKey, html, 24*time.Hour); err != nil {
			s.logger.Debug().Str("website", site).Err(err).Msg("Website cache write failed")
		}
	}
	return html, true
}

func (s *Service) fetchHTTP(ctx context.Context, site string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpStatusError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// fetchBrowser renders the page with headless Chrome for sites that
// serve an empty shell without JavaScript.
func (s *Service) fetchBrowser(ctx context.Context, site string) (string, error) {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(timeoutCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"User-Agent": s.config.UserAgent}),
		chromedp.Navigate(site),
		chromedp.Sleep(s.browserWait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return http.StatusText(e.status)
}
