// Package sanitize cleans raw model output into component source that the
// transpiler can take without module resolution.
package sanitize

import (
	"regexp"
	"strings"
)

// Directive is the canonical client-execution directive line.
const Directive = "'use client'"

const fence = "```"

// Source is sanitized component text: no import lines, and a directive, when
// present, on the first non-blank line in canonical spelling.
type Source = string

// LanguageTags are the bare fence tags dropped from the first line of a
// fenced block.
var LanguageTags = map[string]struct{}{
	"tsx":        {},
	"typescript": {},
	"ts":         {},
	"jsx":        {},
	"js":         {},
	"javascript": {},
}

var (
	directivePattern = regexp.MustCompile(`^(?:use client|"use client"|'use client');?$`)
	importPattern    = regexp.MustCompile(`^\s*import(?:\s|\{|\*|'|"|$)`)
	// specifierPattern matches the inner lines of a braced import list, such
	// as "useState, useEffect," or "} from 'react'".
	specifierPattern = regexp.MustCompile(`^\s*(?:(?:type\s+)?[\w$]+(?:\s+as\s+[\w$]+)?\s*,?\s*)*(?:\}.*)?$`)
)

// Sanitize strips a surrounding code fence, removes import lines and
// normalizes the directive. It is idempotent: the passes are applied until
// the text stops changing.
func Sanitize(raw string) Source {
	code := strings.ReplaceAll(raw, "\r\n", "\n")
	// Apart from the one-time directive respelling, every pass that changes
	// the text makes it shorter, so the loop ends.
	for {
		next := pass(code)
		if next == code {
			return code
		}
		code = next
	}
}

func pass(code string) string {
	code = stripFence(strings.TrimSpace(code))
	code = stripImports(code)
	return strings.TrimSpace(normalizeDirective(code))
}

// stripFence extracts the text strictly between the first and last fence
// when the input opens with one. A lone opening fence is left alone.
func stripFence(code string) string {
	if !strings.HasPrefix(code, fence) {
		return code
	}
	end := strings.LastIndex(code, fence)
	if end <= 0 {
		return code
	}

	inner := code[len(fence):end]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		if isLanguageTag(inner[:nl]) {
			inner = inner[nl+1:]
		}
	} else if isLanguageTag(inner) {
		inner = ""
	}
	return strings.TrimSpace(inner)
}

func isLanguageTag(line string) bool {
	_, ok := LanguageTags[strings.ToLower(strings.TrimSpace(line))]
	return ok
}

// stripImports removes every import statement line. The continuation lines
// of a braced import list go with it, up to the closing brace or the first
// line that is not an import specifier.
func stripImports(code string) string {
	lines := strings.Split(code, "\n")
	out := lines[:0]
	inImport := false
	for _, line := range lines {
		if inImport {
			if strings.TrimSpace(line) != "" && specifierPattern.MatchString(line) {
				inImport = !strings.Contains(line, "}")
				continue
			}
			inImport = false
		}
		if importPattern.MatchString(line) {
			inImport = strings.Contains(line, "{") && !strings.Contains(line, "}")
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func normalizeDirective(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if directivePattern.MatchString(t) {
			lines[i] = Directive
		}
		break
	}
	return strings.Join(lines, "\n")
}

// HasDirective reports whether src opens with the canonical directive.
func HasDirective(src Source) bool {
	for _, line := range strings.Split(src, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t == Directive
		}
	}
	return false
}
