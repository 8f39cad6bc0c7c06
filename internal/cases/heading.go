package cases

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"virtual-patient/pkg"
)

const (
	defaultSpecialty  = "Unknown"
	maxSpecialtyRunes = 50
)

var (
	caseHeading  = regexp.MustCompile(`(?m)^[ \t]*Case\s+\d+:`)
	headingTitle = regexp.MustCompile(`^Case\s+(\d+):[ \t]*(.*)`)

	headingDiagnosisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Diagnosis:\s*([^\n]+)`),
		regexp.MustCompile(`(?i)The diagnosis is:?\s*([^\n]+)`),
		regexp.MustCompile(`(?i)This (?:patient|case) demonstrates:?\s*([^\n]+)`),
	}
)

// parseHeading handles the "Case N:" layout.  Specialty header lines apply
// to every case that follows them until the next header.
func parseHeading(content string) []pkg.CaseRecord {
	var records []pkg.CaseRecord
	specialty := defaultSpecialty

	for _, segment := range splitAtHeadings(content) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if isSpecialtyHeader(segment) {
			specialty = segment
			continue
		}
		body, next, ok := splitTrailingHeader(segment)
		if strings.HasPrefix(body, "Case") {
			rec := parseHeadingCase(body, specialty)
			if rec.CaseDetails != "" {
				records = append(records, rec)
			}
		}
		if ok {
			specialty = next
		}
	}
	return records
}

func splitAtHeadings(content string) []string {
	locs := caseHeading.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return []string{content}
	}
	segments := make([]string, 0, len(locs)+1)
	segments = append(segments, content[:locs[0][0]])
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segments = append(segments, content[loc[0]:end])
	}
	return segments
}

func parseHeadingCase(text, specialty string) pkg.CaseRecord {
	rec := pkg.CaseRecord{Specialty: specialty}

	title, _, _ := strings.Cut(text, "\n")
	if m := headingTitle.FindStringSubmatch(strings.TrimSpace(title)); m != nil {
		rec.CaseNumber = m[1]
		rec.PresentingComplaint = strings.TrimSpace(m[2])
	}

	diagnosis, body := extractDiagnosis(text, headingDiagnosisPatterns)
	rec.Diagnosis = diagnosis
	rec.CaseDetails = strings.TrimSpace(body)
	return rec
}

// splitTrailingHeader detaches a specialty header that was written after
// the last line of a case body, where it belongs to the cases below it.
// Only an uppercase line of words set off by a blank line qualifies;
// findings such as "BP 150/90" or "HIV POSITIVE" stay in the body.
func splitTrailingHeader(segment string) (body, header string, ok bool) {
	i := strings.LastIndex(segment, "\n")
	if i < 0 {
		return segment, "", false
	}
	last := strings.TrimSpace(segment[i+1:])
	before := strings.TrimRight(segment[:i], " \t")
	if !strings.HasSuffix(before, "\n") || !isHeaderWords(last) {
		return segment, "", false
	}
	return strings.TrimSpace(before), last, true
}

// isHeaderWords reports whether s is a specialty header made only of
// letters and spaces.
func isHeaderWords(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' {
			return false
		}
	}
	return isSpecialtyHeader(s)
}

// isSpecialtyHeader reports whether s is short and has cased letters, all
// of them uppercase.
func isSpecialtyHeader(s string) bool {
	if utf8.RuneCountInString(s) >= maxSpecialtyRunes {
		return false
	}
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
