package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"kanaliiga-observer/internal/config"
	"kanaliiga-observer/internal/constants"
	"kanaliiga-observer/internal/domain"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// ResponseCache stores raw upstream responses keyed by request URL.
// Get returns nil without error on a miss.
type ResponseCache interface {
	Get(ctx context.Context, url string, maxAge time.Duration) (*domain.CachedResponse, error)
	Put(ctx context.Context, resp *domain.CachedResponse) error
}

// FetchError reports a non-200 upstream status on an endpoint that validates it.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

type KanastatsClient struct {
	baseURL  string
	proxyURL string
	cacheTTL time.Duration
	client   *fasthttp.Client
	cache    ResponseCache
	logger   zerolog.Logger
}

func NewFastHTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		MaxConnsPerHost:     100,
		ReadTimeout:         constants.ExternalAPITimeout,
		WriteTimeout:        constants.ExternalAPITimeout,
		MaxIdleConnDuration: 1 * time.Minute,
	}
}

func NewKanastatsClient(cfg *config.Config, cache ResponseCache, logger zerolog.Logger) *KanastatsClient {
	return &KanastatsClient{
		baseURL:  cfg.UpstreamURL,
		proxyURL: cfg.ProxyURL,
		cacheTTL: cfg.CacheTTL,
		client:   NewFastHTTPClient(),
		cache:    cache,
		logger:   logger.With().Str("component", "kanastats").Logger(),
	}
}

func (c *KanastatsClient) BaseURL() string {
	return c.baseURL
}

// CreateURL routes target through the configured proxy, if any.
func (c *KanastatsClient) CreateURL(target string) string {
	if c.proxyURL == "" {
		return target
	}
	return c.proxyURL + "?url=" + url.QueryEscape(target)
}

type SeriesResponse struct {
	Series struct {
		Ongoing  []domain.Series `json:"ongoing"`
		Past     []domain.Series `json:"past"`
		Upcoming []domain.Series `json:"upcoming"`
	} `json:"series"`
}

type SeasonResponse struct {
	Leagues       []domain.League       `json:"leagues"`
	Registrations []domain.Registration `json:"registrations"`
}

type GamesResponse struct {
	Games []domain.Game `json:"games"`
}

type StandingsResponse struct {
	Standings struct {
		Teams []domain.StandingsTeam `json:"teams"`
	} `json:"standings"`
}

func (c *KanastatsClient) GetSeries(ctx context.Context) (*SeriesResponse, error) {
	u := fmt.Sprintf("%s/?_data=routes%%2F_index", c.baseURL)
	return doRequest[SeriesResponse](ctx, c, u)
}

func (c *KanastatsClient) GetSeason(ctx context.Context, organization, season string) (*SeasonResponse, error) {
	u := fmt.Sprintf("%s/%s/%s?_data=routes%%2F%%24org.%%24serie",
		c.baseURL, url.PathEscape(organization), url.PathEscape(season))
	return doRequest[SeasonResponse](ctx, c, u)
}

func (c *KanastatsClient) GetGames(ctx context.Context, organization, season, league string) (*GamesResponse, error) {
	u := fmt.Sprintf("%s/%s/%s/%s/games?_data=routes%%2F%%24org.%%24serie.%%24group.games._index",
		c.baseURL, url.PathEscape(organization), url.PathEscape(season), url.PathEscape(league))
	return doRequest[GamesResponse](ctx, c, u)
}

func (c *KanastatsClient) GetStandings(ctx context.Context, organization, season, league string) (*StandingsResponse, error) {
	u := fmt.Sprintf("%s/%s/%s/%s/teams/standings?_data=routes%%2F%%24org.%%24serie.%%24group.teams",
		c.baseURL, url.PathEscape(organization), url.PathEscape(season), url.PathEscape(league))
	return doRequest[StandingsResponse](ctx, c, u)
}

// GetLandingSpots returns the raw landing fragment of one game. Unlike the
// JSON endpoints it fails with *FetchError on any status other than 200.
func (c *KanastatsClient) GetLandingSpots(ctx context.Context, organization, season, league, gameID string) (string, error) {
	u := fmt.Sprintf("%s/%s/%s/%s/games/%s/landing",
		c.baseURL, url.PathEscape(organization), url.PathEscape(season), url.PathEscape(league), url.PathEscape(gameID))

	status, body, err := c.fetch(ctx, u)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", &FetchError{URL: u, StatusCode: status}
	}
	return string(body), nil
}

// GetImage downloads an image, e.g. a team logo.
func (c *KanastatsClient) GetImage(ctx context.Context, imageURL string) ([]byte, error) {
	status, body, err := c.fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, &FetchError{URL: imageURL, StatusCode: status}
	}
	return body, nil
}

func cacheable(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, "/landing") || strings.HasSuffix(u.Path, ".png")
}

func (c *KanastatsClient) fetch(ctx context.Context, target string) (int, []byte, error) {
	requestURL := c.CreateURL(target)
	useCache := c.cache != nil && cacheable(target)

	if useCache {
		cached, err := c.cache.Get(ctx, requestURL, c.cacheTTL)
		if err != nil {
			c.logger.Warn().Err(err).Str("url", requestURL).Msg("cache lookup failed")
		} else if cached != nil {
			c.logger.Debug().Str("url", requestURL).Msg("serving from cache")
			return fasthttp.StatusOK, cached.Body, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return 0, nil, fmt.Errorf("request %s: %w", target, err)
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return 0, nil, fmt.Errorf("request %s: %w", target, err)
		}
	}

	status := resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)

	if useCache && status == fasthttp.StatusOK {
		entry := &domain.CachedResponse{
			URL:         requestURL,
			ContentType: string(resp.Header.ContentType()),
			Body:        body,
			CreatedAt:   time.Now(),
		}
		if err := c.cache.Put(ctx, entry); err != nil {
			c.logger.Warn().Err(err).Str("url", requestURL).Msg("failed to cache response")
		}
	}

	return status, body, nil
}

func doRequest[T any](ctx context.Context, client *KanastatsClient, url string) (*T, error) {
	_, body, err := client.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return &result, nil
}
