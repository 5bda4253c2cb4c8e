package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"kanaliiga-observer/internal/config"
	"kanaliiga-observer/internal/constants"
	"kanaliiga-observer/internal/domain"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	PackFileName = "Observer.zip"
	iconDir      = "TeamIcon/"
	manifestName = "TeamInfo.csv"
)

var manifestHeader = []string{"TeamNumber", "TeamName", "TeamShortName", "ImageFileName", "TeamColor"}

type ObserverService struct {
	upstream Upstream
	labeler  *Labeler
	logoCDN  string
	logger   zerolog.Logger
}

func NewObserverService(upstream Upstream, labeler *Labeler, cfg *config.Config, logger zerolog.Logger) *ObserverService {
	return &ObserverService{
		upstream: upstream,
		labeler:  labeler,
		logoCDN:  cfg.LogoCDNURL,
		logger:   logger.With().Str("component", "observer").Logger(),
	}
}

type PackRequest struct {
	Series domain.Series
	League string
	// Logos are the team logos already resolved by a landing aggregation.
	Logos []domain.TeamLogo
}

type Pack struct {
	Archive []byte
	Records []domain.TeamRecord
	Icons   int
}

type teamIcon struct {
	color string
	png   []byte
}

// Build assembles the observer archive for a league. Logo failures only drop
// that team's icon; standings and archive failures abort.
func (s *ObserverService) Build(ctx context.Context, req PackRequest) (*Pack, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.PackTimeout)
	defer cancel()

	standings, err := s.upstream.GetStandings(ctx, req.Series.Organization, req.Series.Season, req.League)
	if err != nil {
		s.logger.Error().Err(err).Str("league", req.League).Msg("failed to fetch standings")
		return nil, fmt.Errorf("failed to fetch standings: %w", err)
	}

	records := s.teamRecords(standings.Standings.Teams)
	urls := s.resolveLogos(ctx, req, records)
	icons := s.renderIcons(ctx, records, urls)

	for i := range records {
		if icon, ok := icons[records[i].TeamName]; ok {
			records[i].TeamColor = icon.color
		}
	}

	archive, err := writeArchive(records, icons)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to write observer archive")
		return nil, fmt.Errorf("failed to write observer archive: %w", err)
	}

	s.logger.Info().
		Str("season", req.Series.Season).
		Str("league", req.League).
		Int("teams", len(records)).
		Int("icons", len(icons)).
		Msg("observer pack built")

	return &Pack{Archive: archive, Records: records, Icons: len(icons)}, nil
}

func (s *ObserverService) teamRecords(teams []domain.StandingsTeam) []domain.TeamRecord {
	records := make([]domain.TeamRecord, 0, len(teams))
	for _, team := range teams {
		record, ok := domain.NewTeamRecord(team)
		if !ok {
			s.logger.Warn().Str("team_id", team.TeamID).Str("team", team.Name).Msg("team id is not numeric")
		}
		records = append(records, record)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TeamNumber < records[j].TeamNumber
	})
	return records
}

// resolveLogos maps team names to logo urls. Logos from the landing view win;
// registrations are consulted only when the view produced none.
func (s *ObserverService) resolveLogos(ctx context.Context, req PackRequest, records []domain.TeamRecord) map[string]string {
	landing := make(map[string]string, len(req.Logos))
	for _, l := range req.Logos {
		if _, ok := landing[l.Team]; !ok && l.URL != "" {
			landing[l.Team] = l.URL
		}
	}

	var registrations []domain.Registration
	if len(landing) == 0 {
		season, err := s.upstream.GetSeason(ctx, req.Series.Organization, req.Series.Season)
		if err != nil {
			s.logger.Warn().Err(err).Str("season", req.Series.Season).Msg("failed to fetch registrations, continuing without logos")
		} else {
			registrations = season.Registrations
		}
	}

	urls := make(map[string]string)
	for _, r := range records {
		if u, ok := landing[r.TeamName]; ok {
			urls[r.TeamName] = u
			continue
		}
		for _, reg := range registrations {
			if reg.TeamName != r.TeamName {
				continue
			}
			if key := reg.LogoKey(); key != "" {
				urls[r.TeamName] = RegistrationLogoURL(s.logoCDN, key)
				break
			}
		}
	}
	return urls
}

// renderIcons downloads, measures and labels every logo concurrently. The
// result only holds teams whose whole pipeline succeeded.
func (s *ObserverService) renderIcons(ctx context.Context, records []domain.TeamRecord, urls map[string]string) map[string]teamIcon {
	var mu sync.Mutex
	icons := make(map[string]teamIcon, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(constants.LogoConcurrency)

	for _, r := range records {
		u, ok := urls[r.TeamName]
		if !ok {
			continue
		}
		mu.Lock()
		_, claimed := icons[r.TeamName]
		if !claimed {
			icons[r.TeamName] = teamIcon{}
		}
		mu.Unlock()
		if claimed {
			continue
		}

		r := r
		g.Go(func() error {
			icon, err := s.renderIcon(gCtx, u, r.TeamNumber)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn().Err(err).Str("team", r.TeamName).Str("url", u).Msg("skipping team icon")
				delete(icons, r.TeamName)
				return nil
			}
			icons[r.TeamName] = icon
			return nil
		})
	}

	g.Wait()
	return icons
}

func (s *ObserverService) renderIcon(ctx context.Context, url string, teamNumber int) (teamIcon, error) {
	data, err := s.upstream.GetImage(ctx, url)
	if err != nil {
		return teamIcon{}, fmt.Errorf("download logo: %w", err)
	}
	logo, err := DecodeLogo(data)
	if err != nil {
		return teamIcon{}, err
	}
	labeled, err := s.labeler.Label(logo, teamNumber)
	if err != nil {
		return teamIcon{}, err
	}
	return teamIcon{color: DominantColor(logo), png: labeled}, nil
}

// WriteManifest writes records as CSV with a header row.
func WriteManifest(w io.Writer, records []domain.TeamRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(manifestHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{strconv.Itoa(r.TeamNumber), r.TeamName, r.TeamShortName, r.ImageFileName, r.TeamColor}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeArchive is the single writer of the zip; all icons are rendered
// before it runs.
func writeArchive(records []domain.TeamRecord, icons map[string]teamIcon) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if _, err := zw.Create(iconDir); err != nil {
		return nil, fmt.Errorf("create %s: %w", iconDir, err)
	}

	w, err := zw.Create(manifestName)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", manifestName, err)
	}
	if err := WriteManifest(w, records); err != nil {
		return nil, fmt.Errorf("write %s: %w", manifestName, err)
	}

	written := make(map[string]bool)
	for _, r := range records {
		icon, ok := icons[r.TeamName]
		if !ok || written[r.ImageFileName] {
			continue
		}
		written[r.ImageFileName] = true
		w, err := zw.Create(iconDir + r.ImageFileName)
		if err != nil {
			return nil, fmt.Errorf("create icon %s: %w", r.ImageFileName, err)
		}
		if _, err := w.Write(icon.png); err != nil {
			return nil, fmt.Errorf("write icon %s: %w", r.ImageFileName, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
