// Package validator implements the input validation pipeline (spec §4.E):
// empty/length checks, whitespace normalization, prompt-injection pattern
// screening, and a small hostile-markup escape pass. Pattern set ported
// from the original middleware's PROMPT_INJECTION_PATTERNS, compiled once
// at construction the way the teacher compiles regexes in its config and
// schema validation packages.
package validator

import (
	"regexp"
	"strings"

	"github.com/wanderlyst/agentcore/engine/core"
)

// DefaultMaxLength is the spec's default max_length (characters).
const DefaultMaxLength = 4000

// defaultPatterns mirrors the original implementation's instruction-override,
// role-play, jailbreak, and sentinel-token pattern families.
var defaultPatterns = []string{
	`ignore\s+((previous|all|above)\s+)+(instructions?|prompts?|rules?)`,
	`disregard\s+(previous|all|above)`,
	`forget\s+(everything|all|previous)`,
	`new\s+instructions?:`,
	`system\s*:\s*`,
	`<\|system\|>`,
	`<\|assistant\|>`,
	`you\s+are\s+now\s+(a\s+)?different`,
	`pretend\s+(to\s+be|you\s+are)`,
	`act\s+as\s+(if|a)`,
	`roleplay\s+as`,
	`DAN\s+mode`,
	`developer\s+mode`,
	`bypass\s+(filters?|restrictions?|safety)`,
	`unlock\s+(hidden|secret)`,
	`\[\s*INST\s*\]`,
	`\[\s*SYS(TEM)?\s*\]`,
	`</?(system|user|assistant)>`,
}

var escapeReplacements = []struct{ old, new string }{
	{"<script", "&lt;script"},
	{"</script", "&lt;/script"},
	{"javascript:", "javascript&#58;"},
}

var (
	collapseSpaces  = regexp.MustCompile(`[ \t]+`)
	collapseNewline = regexp.MustCompile(`\n{3,}`)
)

// Metadata describes what validation did to the input.
type Metadata struct {
	OriginalLength int
	Sanitized      bool
	SanitizedLength int
	Warnings       []string
}

// Validator runs the five-step pipeline from spec §4.E.
type Validator struct {
	maxLength      int
	checkInjection bool
	patterns       []*regexp.Regexp
}

// Option configures a Validator at construction.
type Option func(*Validator)

// WithMaxLength overrides DefaultMaxLength.
func WithMaxLength(n int) Option {
	return func(v *Validator) { v.maxLength = n }
}

// WithInjectionCheck toggles step 4 of the pipeline; trusted, pre-screened
// input sources may disable it.
func WithInjectionCheck(enabled bool) Option {
	return func(v *Validator) { v.checkInjection = enabled }
}

// WithCustomPatterns appends additional case-insensitive multiline regex
// patterns to the built-in injection-detection list.
func WithCustomPatterns(patterns ...string) Option {
	return func(v *Validator) {
		for _, p := range patterns {
			v.patterns = append(v.patterns, regexp.MustCompile(`(?im)`+p))
		}
	}
}

// New constructs a Validator with the default pattern set, plus any options.
func New(opts ...Option) *Validator {
	v := &Validator{maxLength: DefaultMaxLength, checkInjection: true}
	for _, p := range defaultPatterns {
		v.patterns = append(v.patterns, regexp.MustCompile(`(?im)`+p))
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the five-step pipeline, returning sanitized text and
// metadata, or a UserError-kind domain error on EmptyInput, InputTooLong, or
// PromptInjection.
func (v *Validator) Validate(text string) (string, Metadata, error) {
	meta := Metadata{OriginalLength: len(text)}

	if strings.TrimSpace(text) == "" {
		return "", meta, core.NewKindError(core.KindUser, nil, core.CodeEmptyInput, nil)
	}

	if len(text) > v.maxLength {
		return "", meta, core.NewKindError(core.KindUser, nil, core.CodeInputTooLong, map[string]any{
			"length":     len(text),
			"max_length": v.maxLength,
		})
	}

	sanitized := v.normalizeWhitespace(text)

	if v.checkInjection {
		if pattern, matched := v.matchInjection(sanitized); matched {
			return "", meta, core.NewKindError(core.KindUser, nil, core.CodePromptInjection, map[string]any{
				"pattern": pattern,
			})
		}
	}

	sanitized = escapeHostileMarkup(sanitized)

	if sanitized != text {
		meta.Sanitized = true
		meta.SanitizedLength = len(sanitized)
	}
	return sanitized, meta, nil
}

func (v *Validator) normalizeWhitespace(text string) string {
	text = collapseSpaces.ReplaceAllString(text, " ")
	text = collapseNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func (v *Validator) matchInjection(text string) (string, bool) {
	for _, p := range v.patterns {
		if m := p.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

func escapeHostileMarkup(text string) string {
	for _, r := range escapeReplacements {
		text = strings.ReplaceAll(text, r.old, r.new)
	}
	return text
}
