// Package cases parses clinical case corpora stored as flat text files.
//
// Two layouts exist in the wild.  The heading layout starts every case
// with a "Case N:" line and groups cases under short uppercase specialty
// lines.  The delimited layout separates cases with a literal '@'.
package cases

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"virtual-patient/pkg"
)

// ErrNoCases is returned when a file was read but no case could be parsed
// from it.
var ErrNoCases = errors.New("no cases could be parsed from the file")

// LoadError reports a failed corpus load.  Loading is all-or-nothing.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error loading cases from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Format selects the on-disk layout of a case file.
type Format int

const (
	// FormatAuto picks FormatDelimited when the content contains '@' and
	// FormatHeading otherwise.
	FormatAuto Format = iota
	FormatHeading
	FormatDelimited
)

func (f Format) String() string {
	switch f {
	case FormatHeading:
		return "heading"
	case FormatDelimited:
		return "delimited"
	default:
		return "auto"
	}
}

// ParseFormat maps a configuration value onto a Format.  The empty string
// means auto detection.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "heading", "a":
		return FormatHeading, nil
	case "delimited", "b":
		return FormatDelimited, nil
	}
	return FormatAuto, fmt.Errorf("unknown case file format %q", s)
}

// Load reads a case file and parses every case in it.  The file is decoded
// as ISO-8859-1 so that no byte sequence can fail to decode.
func Load(path string, format Format) ([]pkg.CaseRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	content, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	records := Parse(string(content), format)
	if len(records) == 0 {
		return nil, &LoadError{Path: path, Err: ErrNoCases}
	}
	return records, nil
}

// Parse splits already-decoded content into case records.  Segments that
// yield no case details are dropped silently.
func Parse(content string, format Format) []pkg.CaseRecord {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if format == FormatAuto {
		format = Detect(content)
	}
	if format == FormatDelimited {
		return parseDelimited(content)
	}
	return parseHeading(content)
}

// Detect guesses the layout of a corpus.  An '@' only selects the
// delimited layout when it opens a line or when no "Case N:" heading is
// present, so addresses and doses inside heading-style cases do not.
func Detect(content string) Format {
	if !strings.Contains(content, delimiter) {
		return FormatHeading
	}
	if lineDelimiter.MatchString(content) || !caseHeading.MatchString(content) {
		return FormatDelimited
	}
	return FormatHeading
}

// extractDiagnosis tries each pattern in order.  The first one that
// matches supplies the diagnosis from its last capture group, and every
// match of that pattern is removed from the returned body.
func extractDiagnosis(text string, patterns []*regexp.Regexp) (diagnosis, body string) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return strings.TrimSpace(m[len(m)-1]), p.ReplaceAllLiteralString(text, "")
	}
	return "", text
}
