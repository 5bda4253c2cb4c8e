package service

import (
	"context"
	"errors"
	"fmt"
	"kanaliiga-observer/internal/api"
	"kanaliiga-observer/internal/domain"
	"sync"
)

type fakeUpstream struct {
	mu sync.Mutex

	baseURL       string
	series        api.SeriesResponse
	leagues       []domain.League
	registrations []domain.Registration
	seasonErr     error
	games         map[string][]domain.Game
	landing       map[string]string
	standings     []domain.StandingsTeam
	standingsErr  error
	images        map[string][]byte

	landingCalls []string
	imageCalls   []string
	seasonCalls  int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		baseURL: "https://kanastats.com",
		games:   make(map[string][]domain.Game),
		landing: make(map[string]string),
		images:  make(map[string][]byte),
	}
}

func (f *fakeUpstream) BaseURL() string { return f.baseURL }

func (f *fakeUpstream) GetSeries(ctx context.Context) (*api.SeriesResponse, error) {
	resp := f.series
	return &resp, nil
}

func (f *fakeUpstream) GetSeason(ctx context.Context, organization, season string) (*api.SeasonResponse, error) {
	f.mu.Lock()
	f.seasonCalls++
	f.mu.Unlock()
	if f.seasonErr != nil {
		return nil, f.seasonErr
	}
	return &api.SeasonResponse{Leagues: f.leagues, Registrations: f.registrations}, nil
}

func (f *fakeUpstream) GetGames(ctx context.Context, organization, season, league string) (*api.GamesResponse, error) {
	return &api.GamesResponse{Games: f.games[league]}, nil
}

func (f *fakeUpstream) GetLandingSpots(ctx context.Context, organization, season, league, gameID string) (string, error) {
	f.mu.Lock()
	f.landingCalls = append(f.landingCalls, gameID)
	f.mu.Unlock()
	html, ok := f.landing[gameID]
	if !ok {
		return "", &api.FetchError{URL: gameID, StatusCode: 500}
	}
	return html, nil
}

func (f *fakeUpstream) GetStandings(ctx context.Context, organization, season, league string) (*api.StandingsResponse, error) {
	if f.standingsErr != nil {
		return nil, f.standingsErr
	}
	var resp api.StandingsResponse
	resp.Standings.Teams = f.standings
	return &resp, nil
}

func (f *fakeUpstream) GetImage(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, url)
	f.mu.Unlock()
	data, ok := f.images[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

// landingFragment renders a fragment shaped like the stats site output.
func landingFragment(background string, teams ...string) string {
	html := `<html><body><script>alert(1)</script><div class="wrap"><div id="map" style="position:relative">`
	html += fmt.Sprintf(`<img id="mapImg" src="%s"/>`, background)
	for _, team := range teams {
		html += fmt.Sprintf(`<div class="spot"><img class="mx-auto h-8" alt="%s" src="https://cdn.test/%s.png"/></div>`, team, team)
	}
	return html + `</div></div></body></html>`
}
