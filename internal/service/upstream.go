package service

import (
	"context"
	"kanaliiga-observer/internal/api"
)

// Upstream is the subset of the stats site client the services depend on.
type Upstream interface {
	BaseURL() string
	GetSeries(ctx context.Context) (*api.SeriesResponse, error)
	GetSeason(ctx context.Context, organization, season string) (*api.SeasonResponse, error)
	GetGames(ctx context.Context, organization, season, league string) (*api.GamesResponse, error)
	GetLandingSpots(ctx context.Context, organization, season, league, gameID string) (string, error)
	GetStandings(ctx context.Context, organization, season, league string) (*api.StandingsResponse, error)
	GetImage(ctx context.Context, url string) ([]byte, error)
}

var _ Upstream = (*api.KanastatsClient)(nil)

// foldOrdered threads acc through step for each item in order. An item whose
// step fails is reported to skip and leaves acc untouched. The fold stops
// early once ctx is done.
func foldOrdered[T, A any](ctx context.Context, items []T, acc A, step func(context.Context, A, T) (A, error), skip func(T, error)) A {
	for _, item := range items {
		if ctx.Err() != nil {
			return acc
		}
		next, err := step(ctx, acc, item)
		if err != nil {
			skip(item, err)
			continue
		}
		acc = next
	}
	return acc
}
