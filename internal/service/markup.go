package service

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	mapSelector        = "#map"
	mapImageSelector   = "#mapImg"
	teamLogoSelector   = "img.mx-auto"
	fallbackAttr       = "onerror"
	fallbackAttrFormat = `this.src="%s"`
)

// parseMap parses a landing fragment into its own document and returns the
// map subtree. ok is false when the fragment has no map element.
func parseMap(fragment string) (*goquery.Selection, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, false, err
	}
	m := doc.Find(mapSelector).First()
	return m, m.Length() > 0, nil
}

func teamLogos(m *goquery.Selection) *goquery.Selection {
	return m.Find(teamLogoSelector)
}

// absoluteURL resolves ref against base. Unparseable refs are returned as-is.
func absoluteURL(base *url.URL, ref string) string {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

func outerHTML(s *goquery.Selection) (string, error) {
	var b strings.Builder
	for i := range s.Nodes {
		h, err := goquery.OuterHtml(s.Eq(i))
		if err != nil {
			return "", err
		}
		b.WriteString(h)
	}
	return b.String(), nil
}
