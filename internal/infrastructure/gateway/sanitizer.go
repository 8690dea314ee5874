package gateway

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// redactedMarker replaces every neutralized span so downstream prompts keep
// their shape without carrying the injected content.
const redactedMarker = "[removed]"

type rulesFile struct {
	RoleOverrides []string `yaml:"role_overrides"`
	Delimiters    []string `yaml:"delimiters"`
}

// Sanitizer neutralizes prompt-injection attempts in user-supplied text
// before it is embedded into a provider prompt.
type Sanitizer struct {
	patterns []*regexp.Regexp
}

var (
	sanitizerOnce sync.Once
	sanitizerInst *Sanitizer
)

// NewSanitizer returns the sanitizer backed by the embedded rule set. The
// rules are compiled once per process; a malformed rule file is a build
// defect and panics at first use.
func NewSanitizer() *Sanitizer {
	sanitizerOnce.Do(func() {
		var rules rulesFile
		if err := yaml.Unmarshal(rulesYAML, &rules); err != nil {
			panic(fmt.Sprintf("gateway: embedded rules.yaml is malformed: %v", err))
		}
		exprs := make([]string, 0, len(rules.RoleOverrides)+len(rules.Delimiters))
		exprs = append(exprs, rules.RoleOverrides...)
		exprs = append(exprs, rules.Delimiters...)
		patterns := make([]*regexp.Regexp, 0, len(exprs))
		for _, expr := range exprs {
			patterns = append(patterns, regexp.MustCompile(`(?i)`+expr))
		}
		sanitizerInst = &Sanitizer{patterns: patterns}
	})
	return sanitizerInst
}

// Clean strips control characters and replaces every rule match with the
// redaction marker. It reports how many spans were replaced.
func (s *Sanitizer) Clean(text string) (string, int) {
	cleaned := stripControl(text)
	hits := 0
	for _, pattern := range s.patterns {
		matches := pattern.FindAllStringIndex(cleaned, -1)
		if len(matches) == 0 {
			continue
		}
		hits += len(matches)
		cleaned = pattern.ReplaceAllString(cleaned, redactedMarker)
	}
	return cleaned, hits
}

// stripControl removes non-printing characters while keeping the whitespace
// that carries document structure.
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\t', '\r':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
