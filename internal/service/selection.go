package service

import (
	"context"
	"errors"
	"fmt"
	"kanaliiga-observer/internal/constants"
	"kanaliiga-observer/internal/domain"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
)

var (
	ErrSeriesNotFound = errors.New("series not found")
	ErrLeagueNotFound = errors.New("league not found")
)

type SelectionService struct {
	upstream Upstream
	landing  *LandingService
	logger   zerolog.Logger
}

func NewSelectionService(upstream Upstream, landing *LandingService, logger zerolog.Logger) *SelectionService {
	return &SelectionService{
		upstream: upstream,
		landing:  landing,
		logger:   logger.With().Str("component", "selection").Logger(),
	}
}

// Selection is the restorable view state carried in the page URL.
type Selection struct {
	Season       string `json:"season"`
	League       string `json:"league"`
	Map          string `json:"map"`
	ShowPast     bool   `json:"showPast"`
	ShowUpcoming bool   `json:"showUpcoming"`
}

// ParseSelection reads a selection from URL query parameters.
func ParseSelection(q url.Values) Selection {
	return Selection{
		Season:       q.Get("season"),
		League:       q.Get("league"),
		Map:          q.Get("map"),
		ShowPast:     q.Get("showPast") == "true",
		ShowUpcoming: q.Get("showUpcoming") == "true",
	}
}

// Query encodes the selection back into URL query parameters. Empty stages
// are left out.
func (s Selection) Query() url.Values {
	q := url.Values{}
	if s.Season != "" {
		q.Set("season", s.Season)
	}
	if s.League != "" {
		q.Set("league", s.League)
	}
	if s.Map != "" {
		q.Set("map", s.Map)
	}
	q.Set("showPast", strconv.FormatBool(s.ShowPast))
	q.Set("showUpcoming", strconv.FormatBool(s.ShowUpcoming))
	return q
}

type View struct {
	Selection     Selection             `json:"selection"`
	Query         string                `json:"query"`
	Series        []domain.Series       `json:"series"`
	Leagues       []domain.League       `json:"leagues"`
	Registrations []domain.Registration `json:"registrations"`
	Games         []domain.Game         `json:"games"`
	Maps          []string              `json:"maps"`
	Landing       LandingResult         `json:"landing"`
}

// ListSeries returns ongoing series, followed by past and upcoming ones
// when requested.
func (s *SelectionService) ListSeries(ctx context.Context, showPast, showUpcoming bool) ([]domain.Series, error) {
	resp, err := s.upstream.GetSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series: %w", err)
	}

	series := append([]domain.Series{}, resp.Series.Ongoing...)
	if showPast {
		series = append(series, resp.Series.Past...)
	}
	if showUpcoming {
		series = append(series, resp.Series.Upcoming...)
	}
	return series, nil
}

// FindSeries looks a season up across ongoing, past and upcoming series.
func (s *SelectionService) FindSeries(ctx context.Context, season string) (*domain.Series, error) {
	all, err := s.ListSeries(ctx, true, true)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Season == season {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, season)
}

// Leagues returns the leagues of a series that have game days, plus the
// season's registrations.
func (s *SelectionService) Leagues(ctx context.Context, series domain.Series) ([]domain.League, []domain.Registration, error) {
	resp, err := s.upstream.GetSeason(ctx, series.Organization, series.Season)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch season: %w", err)
	}

	var leagues []domain.League
	for _, l := range resp.Leagues {
		if len(l.GameDays) > 0 {
			leagues = append(leagues, l)
		}
	}
	return leagues, resp.Registrations, nil
}

// ResolveView runs the series, league, game and landing stages in order.
// Each stage keeps the requested value when it is one of the options and
// falls back to the first option otherwise.
func (s *SelectionService) ResolveView(ctx context.Context, sel Selection) (*View, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	view := &View{Selection: Selection{ShowPast: sel.ShowPast, ShowUpcoming: sel.ShowUpcoming}}
	defer func() { view.Query = view.Selection.Query().Encode() }()

	series, err := s.ListSeries(ctx, sel.ShowPast, sel.ShowUpcoming)
	if err != nil {
		return nil, err
	}
	view.Series = series

	current, ok := pick(series, func(x domain.Series) bool { return x.Season == sel.Season })
	if !ok {
		s.logger.Debug().Msg("no series available")
		return view, nil
	}
	view.Selection.Season = current.Season

	leagues, registrations, err := s.Leagues(ctx, current)
	if err != nil {
		return nil, err
	}
	view.Leagues = leagues
	view.Registrations = registrations

	league, ok := pick(leagues, func(l domain.League) bool { return l.Key == sel.League })
	if !ok {
		s.logger.Debug().Str("season", current.Season).Msg("no league with game days")
		return view, nil
	}
	view.Selection.League = league.Key

	games, err := s.upstream.GetGames(ctx, current.Organization, current.Season, league.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch games: %w", err)
	}
	view.Games = games.Games
	view.Maps = domain.MapOptions(games.Games)

	m, ok := pick(view.Maps, func(m string) bool { return m == sel.Map })
	if !ok {
		return view, nil
	}
	view.Selection.Map = m

	view.Landing = s.aggregate(ctx, current, league.Key, games.Games, m, registrations)

	s.logger.Info().
		Str("season", current.Season).
		Str("league", league.Key).
		Str("map", m).
		Int("games", len(view.Landing.Games)).
		Msg("view resolved")

	return view, nil
}

// LandingFor aggregates the landing spots of every game of a league played
// on mapName.
func (s *SelectionService) LandingFor(ctx context.Context, series domain.Series, league, mapName string) (LandingResult, error) {
	games, err := s.upstream.GetGames(ctx, series.Organization, series.Season, league)
	if err != nil {
		return LandingResult{}, fmt.Errorf("failed to fetch games: %w", err)
	}
	return s.aggregate(ctx, series, league, games.Games, mapName, nil), nil
}

func (s *SelectionService) aggregate(ctx context.Context, series domain.Series, league string, games []domain.Game, mapName string, registrations []domain.Registration) LandingResult {
	return s.landing.Aggregate(ctx, LandingRequest{
		Organization:  series.Organization,
		Season:        series.Season,
		League:        league,
		GameIDs:       domain.GamesOnMap(games, mapName),
		Registrations: registrations,
	})
}

// pick returns the first option matching want, or the first option.
func pick[T any](options []T, want func(T) bool) (T, bool) {
	for _, o := range options {
		if want(o) {
			return o, true
		}
	}
	if len(options) > 0 {
		return options[0], true
	}
	var zero T
	return zero, false
}
