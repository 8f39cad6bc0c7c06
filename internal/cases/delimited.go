package cases

import (
	"regexp"
	"strings"

	"virtual-patient/pkg"
)

const delimiter = "@"

var (
	lineDelimiter    = regexp.MustCompile(`(?m)^[ \t]*@`)
	leadingSpecialty = regexp.MustCompile(`^([A-Z]{2,})\b`)
	delimitedTitle   = regexp.MustCompile(`(?i)CASE\s*(\d+):\s*(.+)`)

	delimitedDiagnosisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Diagnosis:\s*(.+)`),
		regexp.MustCompile(`(?i)The diagnosis is:\s*(.+)`),
		regexp.MustCompile(`(?i)diagnosis\s*(?:is\b)?:?\s*(.+)`),
	}
)

// parseDelimited handles the '@' separated layout.  Each block carries its
// own specialty, so no state flows between blocks.
func parseDelimited(content string) []pkg.CaseRecord {
	var records []pkg.CaseRecord
	for _, segment := range strings.Split(content, delimiter) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		rec := parseDelimitedCase(segment)
		if rec.CaseDetails != "" {
			records = append(records, rec)
		}
	}
	return records
}

func parseDelimitedCase(text string) pkg.CaseRecord {
	var rec pkg.CaseRecord

	// Single capitals are ordinary words ("A four-year-old"), not specialties.
	if m := leadingSpecialty.FindStringSubmatch(text); m != nil && !strings.EqualFold(m[1], "CASE") {
		rec.Specialty = m[1]
	}
	if m := delimitedTitle.FindStringSubmatch(text); m != nil {
		rec.CaseNumber = m[1]
		rec.PresentingComplaint = strings.TrimSpace(m[2])
	}

	// The diagnosis is stripped here as well so that neither layout hands
	// the answer to the language model.
	diagnosis, body := extractDiagnosis(text, delimitedDiagnosisPatterns)
	rec.Diagnosis = diagnosis
	rec.CaseDetails = strings.TrimSpace(body)
	return rec
}
