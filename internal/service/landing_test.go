package service

import (
	"context"
	"kanaliiga-observer/internal/config"
	"kanaliiga-observer/internal/domain"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLandingService(upstream Upstream) *LandingService {
	cfg := &config.Config{
		LogoCDNURL:         "https://kanastats.s3-eu-west-1.amazonaws.com/teamlogos",
		PlaceholderLogoURL: "https://kanastats.com/images/newLogo4.webp",
	}
	return NewLandingService(upstream, cfg, zerolog.Nop())
}

func TestAggregateSkipsFailedGamesInOrder(t *testing.T) {
	up := newFakeUpstream()
	up.landing["g1"] = landingFragment("/maps/erangel-1.webp", "Alpha")
	up.landing["g3"] = landingFragment("/maps/erangel-3.webp", "Bravo")
	up.landing["g5"] = landingFragment("/maps/erangel-5.webp", "Charlie")

	svc := newTestLandingService(up)
	res := svc.Aggregate(context.Background(), LandingRequest{GameIDs: []string{"g1", "g2", "g3", "g4", "g5"}})

	if !reflect.DeepEqual(up.landingCalls, []string{"g1", "g2", "g3", "g4", "g5"}) {
		t.Errorf("expected sequential fetch of every game, got %v", up.landingCalls)
	}
	if !reflect.DeepEqual(res.Games, []string{"g1", "g3", "g5"}) {
		t.Errorf("expected successful games in order, got %v", res.Games)
	}

	a := strings.Index(res.Markup, `alt="Alpha"`)
	b := strings.Index(res.Markup, `alt="Bravo"`)
	c := strings.Index(res.Markup, `alt="Charlie"`)
	if a < 0 || b < 0 || c < 0 || !(a < b && b < c) {
		t.Errorf("expected logos in game order, got markup %s", res.Markup)
	}
}

func TestAggregateKeepsOnlyFirstBackground(t *testing.T) {
	up := newFakeUpstream()
	up.landing["g1"] = landingFragment("/maps/first.webp", "Alpha")
	up.landing["g2"] = landingFragment("/maps/second.webp", "Bravo")
	up.landing["g3"] = landingFragment("/maps/third.webp", "Charlie")

	svc := newTestLandingService(up)
	res := svc.Aggregate(context.Background(), LandingRequest{GameIDs: []string{"g1", "g2", "g3"}})

	if n := strings.Count(res.Markup, `id="mapImg"`); n != 1 {
		t.Errorf("expected exactly one background, got %d", n)
	}
	if !strings.Contains(res.Markup, `src="https://kanastats.com/maps/first.webp"`) {
		t.Errorf("expected absolute background url, got %s", res.Markup)
	}
	if strings.Contains(res.Markup, "second.webp") || strings.Contains(res.Markup, "third.webp") {
		t.Errorf("later backgrounds must not be included: %s", res.Markup)
	}
	if !strings.HasPrefix(res.Markup, `<div id="map"`) {
		t.Errorf("expected composite to start with the map subtree, got %s", res.Markup)
	}
	if strings.Contains(res.Markup, "<script>") {
		t.Errorf("content outside the map must be dropped: %s", res.Markup)
	}
	if strings.Count(res.Markup, `id="map"`) != 1 {
		t.Errorf("later games must contribute logos only: %s", res.Markup)
	}
}

func TestAggregateFirstContributingGameDefinesBackground(t *testing.T) {
	up := newFakeUpstream()
	up.landing["g1"] = `<div><p>no map here</p></div>`
	up.landing["g2"] = landingFragment("/maps/second.webp", "Bravo")

	svc := newTestLandingService(up)
	res := svc.Aggregate(context.Background(), LandingRequest{GameIDs: []string{"g1", "g2"}})

	if !reflect.DeepEqual(res.Games, []string{"g2"}) {
		t.Errorf("expected only g2 to contribute, got %v", res.Games)
	}
	if !strings.Contains(res.Markup, `src="https://kanastats.com/maps/second.webp"`) {
		t.Errorf("expected g2 background, got %s", res.Markup)
	}
}

func TestAggregateAttachesLogoFallbacks(t *testing.T) {
	up := newFakeUpstream()
	up.landing["g1"] = landingFragment("/maps/first.webp", "Alpha", "Unknown")

	svc := newTestLandingService(up)
	res := svc.Aggregate(context.Background(), LandingRequest{
		GameIDs: []string{"g1"},
		Registrations: []domain.Registration{
			{Team: "uuid-1", TeamName: "Alpha", Logo: domain.LogoRef{Present: true}},
		},
	})

	if !strings.Contains(res.Markup, "https://kanastats.s3-eu-west-1.amazonaws.com/teamlogos/uuid-1.png") {
		t.Errorf("expected registration fallback for Alpha, got %s", res.Markup)
	}
	if !strings.Contains(res.Markup, "https://kanastats.com/images/newLogo4.webp") {
		t.Errorf("expected placeholder fallback for unknown team, got %s", res.Markup)
	}
	if strings.Count(res.Markup, "onerror=") != 2 {
		t.Errorf("expected an onerror handler per logo, got %s", res.Markup)
	}
}

func TestAggregateCollectsDeduplicatedLogos(t *testing.T) {
	up := newFakeUpstream()
	up.landing["g1"] = landingFragment("/maps/first.webp", "Alpha", "Bravo")
	up.landing["g2"] = landingFragment("/maps/second.webp", "Bravo", "Charlie")

	svc := newTestLandingService(up)
	res := svc.Aggregate(context.Background(), LandingRequest{GameIDs: []string{"g1", "g2"}})

	want := []domain.TeamLogo{
		{Team: "Alpha", URL: "https://cdn.test/Alpha.png"},
		{Team: "Bravo", URL: "https://cdn.test/Bravo.png"},
		{Team: "Charlie", URL: "https://cdn.test/Charlie.png"},
	}
	if !reflect.DeepEqual(res.Logos, want) {
		t.Errorf("expected %v, got %v", want, res.Logos)
	}
	if strings.Count(res.Markup, `alt="Bravo"`) != 2 {
		t.Errorf("markup keeps every marker, got %s", res.Markup)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	up := newFakeUpstream()
	svc := newTestLandingService(up)

	res := svc.Aggregate(context.Background(), LandingRequest{})
	if res.Markup != "" || len(res.Logos) != 0 || len(res.Games) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if len(up.landingCalls) != 0 {
		t.Errorf("expected no fetches, got %v", up.landingCalls)
	}
}

func TestAggregateAllFailing(t *testing.T) {
	up := newFakeUpstream()
	svc := newTestLandingService(up)

	res := svc.Aggregate(context.Background(), LandingRequest{GameIDs: []string{"x", "y"}})
	if res.Markup != "" {
		t.Errorf("expected empty markup, got %s", res.Markup)
	}
}

func TestFoldOrderedStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var seen []int
	sum := foldOrdered(ctx, []int{1, 2, 3}, 0, func(ctx context.Context, acc int, n int) (int, error) {
		seen = append(seen, n)
		if n == 2 {
			cancel()
		}
		return acc + n, nil
	}, func(int, error) {})

	if sum != 3 {
		t.Errorf("expected 3, got %d", sum)
	}
	if !reflect.DeepEqual(seen, []int{1, 2}) {
		t.Errorf("expected fold to stop after cancel, got %v", seen)
	}
}
