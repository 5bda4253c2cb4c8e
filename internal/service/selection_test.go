package service

import (
	"context"
	"kanaliiga-observer/internal/domain"
	"net/url"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func newSelectionFixture() *fakeUpstream {
	up := newFakeUpstream()
	up.series.Series.Ongoing = []domain.Series{
		{Name: "Kanaliiga S12", Organization: "kanaliiga", Season: "s12"},
		{Name: "Kanaliiga S12 Cup", Organization: "kanaliiga", Season: "s12-cup"},
	}
	up.series.Series.Past = []domain.Series{{Name: "Kanaliiga S11", Organization: "kanaliiga", Season: "s11"}}
	up.series.Series.Upcoming = []domain.Series{{Name: "Kanaliiga S13", Organization: "kanaliiga", Season: "s13"}}
	up.leagues = []domain.League{
		{Key: "empty", Name: "Empty", GameDays: nil},
		{Key: "l1", Name: "League 1", GameDays: []string{"d1"}},
		{Key: "l2", Name: "League 2", GameDays: []string{"d1", "d2"}},
	}
	up.registrations = []domain.Registration{{Team: "uuid-1", TeamName: "Alpha", Logo: domain.LogoRef{Present: true}}}
	up.games["l1"] = []domain.Game{
		{GameID: "g0", MapName: "Savage_Main"},
		{GameID: "g1", MapName: "Baltic_Main"},
		{GameID: "g2", MapName: "Desert_Main"},
		{GameID: "g3", MapName: "Baltic_Main"},
	}
	up.games["l2"] = []domain.Game{{GameID: "h1", MapName: "Tiger_Main"}}
	up.landing["g1"] = landingFragment("/maps/erangel.webp", "Alpha")
	up.landing["g2"] = landingFragment("/maps/miramar.webp", "Bravo")
	up.landing["g3"] = landingFragment("/maps/erangel.webp", "Charlie")
	up.landing["h1"] = landingFragment("/maps/taego.webp", "Delta")
	return up
}

func newTestSelectionService(up *fakeUpstream) *SelectionService {
	return NewSelectionService(up, newTestLandingService(up), zerolog.Nop())
}

func TestListSeriesGroups(t *testing.T) {
	svc := newTestSelectionService(newSelectionFixture())

	tests := []struct {
		past, upcoming bool
		want           []string
	}{
		{false, false, []string{"s12", "s12-cup"}},
		{true, false, []string{"s12", "s12-cup", "s11"}},
		{false, true, []string{"s12", "s12-cup", "s13"}},
		{true, true, []string{"s12", "s12-cup", "s11", "s13"}},
	}
	for _, tt := range tests {
		series, err := svc.ListSeries(context.Background(), tt.past, tt.upcoming)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got []string
		for _, s := range series {
			got = append(got, s.Season)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("past=%v upcoming=%v: expected %v, got %v", tt.past, tt.upcoming, tt.want, got)
		}
	}
}

func TestResolveViewDefaults(t *testing.T) {
	up := newSelectionFixture()
	svc := newTestSelectionService(up)

	view, err := svc.ResolveView(context.Background(), Selection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Selection{Season: "s12", League: "l1", Map: "Erangel"}
	if view.Selection != want {
		t.Errorf("expected %+v, got %+v", want, view.Selection)
	}
	if len(view.Leagues) != 2 {
		t.Errorf("expected leagues without game days to be dropped, got %+v", view.Leagues)
	}
	if !reflect.DeepEqual(view.Maps, []string{"Erangel", "Miramar"}) {
		t.Errorf("unexpected maps %v", view.Maps)
	}
	if !reflect.DeepEqual(up.landingCalls, []string{"g1", "g3"}) {
		t.Errorf("expected only Erangel games fetched, got %v", up.landingCalls)
	}
	if !reflect.DeepEqual(view.Landing.Games, []string{"g1", "g3"}) {
		t.Errorf("unexpected landing games %v", view.Landing.Games)
	}

	q, _ := url.ParseQuery(view.Query)
	if q.Get("season") != "s12" || q.Get("league") != "l1" || q.Get("map") != "Erangel" || q.Get("showPast") != "false" {
		t.Errorf("unexpected query %s", view.Query)
	}
}

func TestResolveViewKeepsMatchingSelection(t *testing.T) {
	up := newSelectionFixture()
	svc := newTestSelectionService(up)

	view, err := svc.ResolveView(context.Background(), Selection{Season: "s12-cup", League: "l1", Map: "Miramar"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Selection{Season: "s12-cup", League: "l1", Map: "Miramar"}
	if view.Selection != want {
		t.Errorf("expected %+v, got %+v", want, view.Selection)
	}
	if !reflect.DeepEqual(up.landingCalls, []string{"g2"}) {
		t.Errorf("expected only g2, got %v", up.landingCalls)
	}
}

func TestResolveViewReplacesStaleSelection(t *testing.T) {
	up := newSelectionFixture()
	svc := newTestSelectionService(up)

	// a past season is only selectable with showPast, and Miramar is not
	// played in l2
	view, err := svc.ResolveView(context.Background(), Selection{Season: "s11", League: "l2", Map: "Miramar"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Selection{Season: "s12", League: "l2", Map: "Taego"}
	if view.Selection != want {
		t.Errorf("expected %+v, got %+v", want, view.Selection)
	}

	view, err = svc.ResolveView(context.Background(), Selection{Season: "s11", ShowPast: true, Map: "Bogus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Selection.Season != "s11" || view.Selection.Map != "Erangel" {
		t.Errorf("unexpected selection %+v", view.Selection)
	}
}

func TestResolveViewEndToEndMapFilter(t *testing.T) {
	up := newFakeUpstream()
	up.series.Series.Ongoing = []domain.Series{{Name: "S", Organization: "o", Season: "s"}}
	up.leagues = []domain.League{{Key: "l", Name: "L", GameDays: []string{"d"}}}
	up.games["l"] = []domain.Game{{GameID: "g1", MapName: "Baltic_Main"}, {GameID: "g2", MapName: "Desert_Main"}}
	up.landing["g1"] = landingFragment("/maps/erangel.webp", "Alpha")
	up.landing["g2"] = landingFragment("/maps/miramar.webp", "Bravo")

	view, err := newTestSelectionService(up).ResolveView(context.Background(), Selection{Map: "Erangel"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(up.landingCalls, []string{"g1"}) {
		t.Errorf("expected only g1 fetched, got %v", up.landingCalls)
	}
	if !reflect.DeepEqual(view.Landing.Games, []string{"g1"}) {
		t.Errorf("expected only g1 aggregated, got %v", view.Landing.Games)
	}
}

func TestResolveViewWithoutSeries(t *testing.T) {
	svc := newTestSelectionService(newFakeUpstream())

	view, err := svc.ResolveView(context.Background(), Selection{Season: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Selection.Season != "" || view.Landing.Markup != "" {
		t.Errorf("expected empty view, got %+v", view)
	}
}

func TestFindSeriesSearchesAllGroups(t *testing.T) {
	svc := newTestSelectionService(newSelectionFixture())

	s, err := svc.FindSeries(context.Background(), "s13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "Kanaliiga S13" {
		t.Errorf("unexpected series %+v", s)
	}

	if _, err := svc.FindSeries(context.Background(), "nope"); err == nil {
		t.Error("expected ErrSeriesNotFound")
	}
}

func TestSelectionQueryRoundTrip(t *testing.T) {
	sel := Selection{Season: "s12", League: "l1", Map: "Erangel", ShowPast: true}
	if got := ParseSelection(sel.Query()); got != sel {
		t.Errorf("expected %+v, got %+v", sel, got)
	}

	q := Selection{}.Query()
	if q.Has("season") || q.Has("league") || q.Has("map") {
		t.Errorf("empty stages must be omitted, got %v", q)
	}
}

func TestLandingForCollectsLogos(t *testing.T) {
	up := newSelectionFixture()
	svc := newTestSelectionService(up)

	res, err := svc.LandingFor(context.Background(), domain.Series{Organization: "kanaliiga", Season: "s12"}, "l1", "Erangel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.TeamLogo{
		{Team: "Alpha", URL: "https://cdn.test/Alpha.png"},
		{Team: "Charlie", URL: "https://cdn.test/Charlie.png"},
	}
	if !reflect.DeepEqual(res.Logos, want) {
		t.Errorf("expected %v, got %v", want, res.Logos)
	}
}
