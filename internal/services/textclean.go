package services

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// NoTextPlaceholder stands in for a screenshot that produced no usable text,
// so the classifier still sees that an image existed at that position.
const NoTextPlaceholder = "[no text detected]"

// chromePatterns match OS and messenger chrome that OCR picks up around the
// conversation itself. A line matching any pattern is dropped whole.
var chromePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{1,2}:\d{2}(\s?[APap][Mm])?$`),
	regexp.MustCompile(`^\d{1,3}\s?%$`),
	regexp.MustCompile(`(?i)^(lte|5g|4g|3g|wi-?fi)$`),
	regexp.MustCompile(`(?i)^(imessage|text message|whatsapp|messenger|telegram|signal|instagram)$`),
	regexp.MustCompile(`(?i)^(today|yesterday)$`),
	regexp.MustCompile(`(?i)^(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`),
	regexp.MustCompile(`(?i)^(delivered|read|seen|sent|typing\.{0,3})$`),
	regexp.MustCompile(`(?i)^(type a message|message)$`),
	regexp.MustCompile(`^[<>‹›⌃⌄✓✔]+$`),
}

var multiNewline = regexp.MustCompile(`\n{3,}`)

// CleanTranscript strips chrome lines from raw OCR output and normalizes
// whitespace. Runs of three or more newlines collapse to a single blank
// line. The extra patterns come from an optional operator-supplied rules
// file and are matched the same way as the built-in set.
func CleanTranscript(raw string, extra []*regexp.Regexp) string {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if matchesAny(trimmed, chromePatterns) || matchesAny(trimmed, extra) {
			continue
		}
		kept = append(kept, trimmed)
	}
	out := multiNewline.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

func matchesAny(line string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// BuildTranscript joins per-screenshot text into one document in upload
// order, separated by markers naming the source image. Screenshots that
// produced no text appear as placeholders rather than vanishing.
func BuildTranscript(sections []string) string {
	var sb strings.Builder
	for i, section := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Screenshot %d ---\n\n", i+1)
		if section == "" {
			section = NoTextPlaceholder
		}
		sb.WriteString(section)
	}
	return sb.String()
}

// CleanerRules is the schema of the optional YAML rules file.
type CleanerRules struct {
	Patterns []string `yaml:"patterns"`
}

// LoadCleanerRules reads extra line-drop patterns from a YAML file. Each
// pattern is a Go regular expression matched against a whole trimmed line.
func LoadCleanerRules(path string) ([]*regexp.Regexp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cleaner rules: %w", err)
	}

	var rules CleanerRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse cleaner rules: %w", err)
	}

	patterns := make([]*regexp.Regexp, 0, len(rules.Patterns))
	for _, p := range rules.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid cleaner rule %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}
