package domain

// Maps is the only source of valid map values. Games are always matched
// against the translated names, never the raw keys.
var Maps = map[string]string{
	"Baltic_Main": "Erangel",
	"Desert_Main": "Miramar",
	"Neon_Main":   "Rondo",
	"Tiger_Main":  "Taego",
}

// GamesOnMap returns the ids of games whose translated map equals display,
// in input order.
func GamesOnMap(games []Game, display string) []string {
	var ids []string
	if display == "" {
		return ids
	}
	for _, g := range games {
		if name, ok := g.DisplayMap(); ok && name == display {
			ids = append(ids, g.GameID)
		}
	}
	return ids
}

// MapOptions lists the distinct translated maps of games in first-seen
// order. Untranslatable keys are dropped.
func MapOptions(games []Game) []string {
	seen := make(map[string]bool)
	var options []string
	for _, g := range games {
		name, ok := g.DisplayMap()
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		options = append(options, name)
	}
	return options
}
