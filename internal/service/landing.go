package service

import (
	"context"
	"fmt"
	"kanaliiga-observer/internal/config"
	"kanaliiga-observer/internal/domain"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

type LandingService struct {
	upstream    Upstream
	logoCDN     string
	placeholder string
	logger      zerolog.Logger
}

func NewLandingService(upstream Upstream, cfg *config.Config, logger zerolog.Logger) *LandingService {
	return &LandingService{
		upstream:    upstream,
		logoCDN:     cfg.LogoCDNURL,
		placeholder: cfg.PlaceholderLogoURL,
		logger:      logger.With().Str("component", "landing").Logger(),
	}
}

type LandingRequest struct {
	Organization  string
	Season        string
	League        string
	GameIDs       []string
	Registrations []domain.Registration
}

type LandingResult struct {
	// Markup is the composite: the first contributing game's whole map
	// followed by the team logos of every later game.
	Markup string            `json:"markup"`
	Logos  []domain.TeamLogo `json:"logos"`
	Games  []string          `json:"games"`
}

type composite struct {
	markup strings.Builder
	games  []string
	logos  []domain.TeamLogo
	seen   map[string]bool
}

// Aggregate fetches each game's landing fragment in order and merges them.
// Games that fail to fetch or carry no map are skipped.
func (s *LandingService) Aggregate(ctx context.Context, req LandingRequest) LandingResult {
	base, err := url.Parse(s.upstream.BaseURL())
	if err != nil {
		s.logger.Error().Err(err).Msg("invalid upstream base url")
		return LandingResult{}
	}

	acc := foldOrdered(ctx, req.GameIDs, &composite{seen: make(map[string]bool)},
		func(ctx context.Context, acc *composite, gameID string) (*composite, error) {
			fragment, err := s.upstream.GetLandingSpots(ctx, req.Organization, req.Season, req.League, gameID)
			if err != nil {
				return nil, err
			}
			return acc, s.merge(acc, base, gameID, fragment, req.Registrations)
		},
		func(gameID string, err error) {
			s.logger.Error().Err(err).Str("game_id", gameID).Msg("skipping landing spots for game")
		},
	)

	s.logger.Info().
		Int("requested", len(req.GameIDs)).
		Int("contributed", len(acc.games)).
		Int("logos", len(acc.logos)).
		Msg("landing spots aggregated")

	return LandingResult{Markup: acc.markup.String(), Logos: acc.logos, Games: acc.games}
}

func (s *LandingService) merge(acc *composite, base *url.URL, gameID, fragment string, registrations []domain.Registration) error {
	m, ok, err := parseMap(fragment)
	if err != nil {
		return fmt.Errorf("parse landing fragment: %w", err)
	}
	if !ok {
		s.logger.Debug().Str("game_id", gameID).Msg("landing fragment has no map")
		return nil
	}

	logos := teamLogos(m)
	logos.Each(func(_ int, img *goquery.Selection) {
		alt, _ := img.Attr("alt")
		img.SetAttr(fallbackAttr, fmt.Sprintf(fallbackAttrFormat, s.fallbackLogo(alt, registrations)))
	})

	var part string
	// fragments without #map returned above, so the first game reaching this
	// point supplies the background even if earlier fetches succeeded
	if len(acc.games) == 0 {
		if bg := m.Find(mapImageSelector).First(); bg.Length() > 0 {
			if src, ok := bg.Attr("src"); ok {
				bg.SetAttr("src", absoluteURL(base, src))
			}
		}
		part, err = goquery.OuterHtml(m)
	} else {
		part, err = outerHTML(logos)
	}
	if err != nil {
		return fmt.Errorf("render landing fragment: %w", err)
	}

	acc.markup.WriteString(part)
	acc.games = append(acc.games, gameID)
	logos.Each(func(_ int, img *goquery.Selection) {
		alt, _ := img.Attr("alt")
		src, ok := img.Attr("src")
		if alt == "" || !ok || src == "" || acc.seen[alt] {
			return
		}
		acc.seen[alt] = true
		acc.logos = append(acc.logos, domain.TeamLogo{Team: alt, URL: absoluteURL(base, src)})
	})
	return nil
}

// fallbackLogo picks the image shown when a rendered team logo fails to load.
func (s *LandingService) fallbackLogo(alt string, registrations []domain.Registration) string {
	for _, r := range registrations {
		if r.TeamName == alt && r.Team != "" {
			return RegistrationLogoURL(s.logoCDN, r.Team)
		}
	}
	return s.placeholder
}

func RegistrationLogoURL(cdn, key string) string {
	return fmt.Sprintf("%s/%s.png", cdn, key)
}
