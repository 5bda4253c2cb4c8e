package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Series struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Season       string `json:"season"`
}

type League struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	GameDays []string `json:"gameDays"`
}

type Registration struct {
	Team     string   `json:"team"` // usually a uuid
	TeamName string   `json:"teamName"`
	Group    string   `json:"group"`
	Leagues  []string `json:"leagues"`
	Logo     LogoRef  `json:"logo"`
}

// LogoRef is the registration logo field, which upstream sends either as a
// boolean flag or as a logo identifier string.
type LogoRef struct {
	Present bool
	ID      string
}

func (l *LogoRef) UnmarshalJSON(data []byte) error {
	*l = LogoRef{}
	if string(data) == "null" {
		return nil
	}

	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		l.Present = flag
		return nil
	}

	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("logo must be a boolean or string: %w", err)
	}
	l.ID = id
	l.Present = id != ""
	return nil
}

func (l LogoRef) MarshalJSON() ([]byte, error) {
	if l.ID != "" {
		return json.Marshal(l.ID)
	}
	return json.Marshal(l.Present)
}

// LogoKey returns the CDN object name for the logo, or "" when there is none.
func (r Registration) LogoKey() string {
	switch {
	case !r.Logo.Present:
		return ""
	case r.Logo.ID != "":
		return r.Logo.ID
	default:
		return r.Team
	}
}

type Game struct {
	GameID  string `json:"gameId"`
	MapName string `json:"mapName"`
}

// DisplayMap translates the raw upstream map key. ok is false for keys
// outside the known map table.
func (g Game) DisplayMap() (string, bool) {
	name, ok := Maps[g.MapName]
	return name, ok
}

type StandingsTeam struct {
	Name   string `json:"name"`
	TeamID string `json:"teamId"`
}

type TeamLogo struct {
	Team string `json:"team"`
	URL  string `json:"url"`
}

const DefaultTeamColor = "FFFFFFFF"

type TeamRecord struct {
	TeamNumber    int
	TeamName      string
	TeamShortName string
	ImageFileName string
	TeamColor     string
}

// NewTeamRecord derives the observer manifest row for a standings entry.
// ok is false when the team id has no leading digits.
func NewTeamRecord(team StandingsTeam) (TeamRecord, bool) {
	number, ok := parseLeadingInt(team.TeamID)
	return TeamRecord{
		TeamNumber:    number,
		TeamName:      team.Name,
		TeamShortName: shortName(team.Name),
		ImageFileName: team.TeamID + ".png",
		TeamColor:     DefaultTeamColor,
	}, ok
}

func shortName(name string) string {
	runes := []rune(name)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return strings.ToUpper(string(runes))
}

func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

type CachedResponse struct {
	ID          string // nanoid
	URL         string
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}
