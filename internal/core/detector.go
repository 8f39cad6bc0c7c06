package core

import "strings"

// DefaultDiagnosisTriggers are the phrases that mark a doctor's message as
// a diagnosis attempt.
var DefaultDiagnosisTriggers = []string{
	"my diagnosis is",
	"i think this is",
	"this could be",
	"you have",
}

// extraStripPhrases are removed from a diagnosis attempt on top of the
// triggers.  They never trigger scoring on their own.
var extraStripPhrases = []string{"this is"}

// Detector decides whether a message commits to a diagnosis and isolates
// the candidate diagnosis text from it.
type Detector struct {
	triggers []string
	strip    []string
}

// NewDetector builds a Detector from a trigger list.  Triggers are matched
// case-insensitively as substrings.  An empty list uses
// DefaultDiagnosisTriggers.
func NewDetector(triggers ...string) *Detector {
	if len(triggers) == 0 {
		triggers = DefaultDiagnosisTriggers
	}
	d := &Detector{}
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			d.triggers = append(d.triggers, t)
		}
	}
	d.strip = append(append([]string{}, d.triggers...), extraStripPhrases...)
	return d
}

// Triggers returns a copy of the configured trigger phrases.
func (d *Detector) Triggers() []string {
	return append([]string(nil), d.triggers...)
}

// Matches reports whether message contains any trigger phrase.
func (d *Detector) Matches(message string) bool {
	lower := strings.ToLower(message)
	for _, t := range d.triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Extract lower-cases message and removes every occurrence of every strip
// phrase, trimming after each one.
func (d *Detector) Extract(message string) string {
	text := strings.ToLower(message)
	for _, phrase := range d.strip {
		text = strings.TrimSpace(strings.ReplaceAll(text, phrase, ""))
	}
	return text
}
