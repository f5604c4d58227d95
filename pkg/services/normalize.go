package services

import "strings"

// seniorityAliases maps raw model output to the canonical seniority levels.
var seniorityAliases = map[string]string{
	"intern":     "internship",
	"internship": "internship",
	"entry":      "junior",
	"entry level": "junior",
	"entry-level": "junior",
	"junior":     "junior",
	"jr":         "junior",
	"mid":        "mid",
	"mid level":  "mid",
	"mid-level":  "mid",
	"midlevel":   "mid",
	"senior":     "senior",
	"sr":         "senior",
	"staff":      "staff",
	"principal":  "principal",
	"lead":       "lead",
	"head":       "lead",
	"director":   "director",
	"vp":         "executive",
	"executive":  "executive",
	"c-level":    "executive",
}

// NormalizeSeniority maps a free-form seniority label to the canonical enum.
// Unknown labels pass through lowercased.
func NormalizeSeniority(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := seniorityAliases[key]; ok {
		return canonical
	}
	return key
}

// SplitListValue turns a comma- or newline-separated string into trimmed
// list items, dropping empties. Used when a tool or suggestion writes a
// list-shaped field as prose.
func SplitListValue(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(f); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// StripMarkdown removes the light markdown the chat models wrap replies in.
// Copilot replies render as plain text in the client.
func StripMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"**", "",
		"__", "",
		"`", "",
	)
	out := replacer.Replace(s)
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		for strings.HasPrefix(trimmed, "#") {
			trimmed = strings.TrimPrefix(trimmed, "#")
		}
		lines[i] = strings.TrimLeft(trimmed, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
