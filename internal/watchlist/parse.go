package watchlist

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Markup selectors for the listing grid. The second container form is the
// older poster-list layout that some profiles still serve.
const (
	containerSelector = "ul.grid li.griditem, ul.poster-list li.poster-container"
	dataSelector      = "[data-item-slug], [data-film-slug]"
)

// Data attributes read from each container.
const (
	attrItemSlug        = "data-item-slug"
	attrFilmSlug        = "data-film-slug"
	attrTargetLink      = "data-target-link"
	attrDetailsEndpoint = "data-details-endpoint"
	attrPosterURL       = "data-poster-url"
)

// PageResult holds what one listing page yielded.
type PageResult struct {
	Entries    []Entry
	Containers int
	Skipped    []error
}

// ParsePage extracts entries from one listing page in document order.
// Relative references are resolved against base. Containers missing required
// attributes are reported in Skipped and never abort the page.
func ParsePage(r io.Reader, base *url.URL) (PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return PageResult{}, fmt.Errorf("parse listing markup: %w", err)
	}

	var result PageResult
	doc.Find(containerSelector).Each(func(_ int, s *goquery.Selection) {
		result.Containers++
		entry, err := parseContainer(s, base)
		if err != nil {
			result.Skipped = append(result.Skipped, err)
			return
		}
		result.Entries = append(result.Entries, entry)
	})
	return result, nil
}

func parseContainer(s *goquery.Selection, base *url.URL) (Entry, error) {
	node := s
	if !node.Is(dataSelector) {
		node = s.Find(dataSelector).First()
	}
	if node.Length() == 0 {
		return Entry{}, fmt.Errorf("%w: no element carries a slug", ErrMalformedEntry)
	}

	slug := attr(node, attrItemSlug)
	if slug == "" {
		slug = attr(node, attrFilmSlug)
	}
	name := DisplayName(slug)
	if name == "" {
		return Entry{}, fmt.Errorf("%w: empty slug", ErrMalformedEntry)
	}

	detailURL, err := resolveAttr(node, attrTargetLink, base)
	if err != nil {
		return Entry{}, err
	}
	endpoint, err := resolveAttr(node, attrDetailsEndpoint, base)
	if err != nil {
		return Entry{}, err
	}
	poster, err := resolveAttr(node, attrPosterURL, base)
	if err != nil {
		poster = ""
	}

	return Entry{
		DisplayName:     name,
		Slug:            slug,
		DetailURL:       detailURL,
		DetailsEndpoint: endpoint,
		PosterURL:       poster,
	}, nil
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func resolveAttr(s *goquery.Selection, name string, base *url.URL) (string, error) {
	raw := attr(s, name)
	if raw == "" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedEntry, name)
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: bad %s %q: %v", ErrMalformedEntry, name, raw, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
