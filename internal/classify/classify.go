// Package classify extracts the dev server URL from a single line of
// terminal output. Interactive dev servers decorate the line with colors,
// arrows and other glyphs, so the text is cleaned in two passes before the
// URL is cut out:
//
//  1. every run of characters outside \x20-\xaf is dropped, this removes
//     the ESC lead byte of color sequences and any non Latin-1 glyph
//  2. the leftover SGR tails ("[32m", "[0m", ...) are dropped
//
// The order matters, the tails only become visible after the first pass.
package classify

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/CZERTAINLY/devserver/internal/model"
)

// Marker must be present in a line before it is worth classifying.
const Marker = "http://"

var (
	reNonPrintable = regexp.MustCompile(`[^\x20-\xaf]+`)
	reColorCode    = regexp.MustCompile(`\[[0-9]{1,2}m`)
)

// HasMarker reports if the raw line contains Marker.
func HasMarker(line string) bool {
	return strings.Contains(line, Marker)
}

// Clean returns line without control characters and color codes,
// trimmed of surrounding whitespace.
func Clean(line string) string {
	s := reNonPrintable.ReplaceAllString(line, "")
	s = reColorCode.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// URL returns the text from the first Marker to the end of the cleaned line,
// unchanged. It fails with model.ErrNoMarker when cleaning destroyed the
// marker and with model.ErrInvalidURL when the rest is not an absolute URL.
func URL(line string) (model.URL, error) {
	cleaned := Clean(line)
	idx := strings.Index(cleaned, Marker)
	if idx < 0 {
		return model.URL{}, model.ErrNoMarker
	}

	raw := cleaned[idx:]
	// DEL survives cleaning, but net/url refuses control characters
	u, err := url.Parse(strings.ReplaceAll(raw, "\x7f", "%7F"))
	if err != nil {
		return model.URL{}, fmt.Errorf("%w: %w", model.ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return model.URL{}, fmt.Errorf("%w: %q is not absolute", model.ErrInvalidURL, raw)
	}
	return model.NewURL(raw, u), nil
}
