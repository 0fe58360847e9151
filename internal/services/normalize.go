package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/redflag-ai/redflag/internal/models"
)

const (
	defaultConfidence = 0.85
	defaultSeverity   = 3.0
	maxExamples       = 5
	maxQuoteRunes     = 280
	maxReceipts       = 30
)

// Normalize turns an arbitrary, untrusted classifier payload into a canonical
// NormalizedReport. It is total: any input, including an empty map, yields a
// schema-valid report with an in-range score. Field access never assumes a
// type; every value is coerced or replaced with a default.
func Normalize(raw map[string]any) models.NormalizedReport {
	if raw == nil {
		raw = map[string]any{}
	}

	rep := models.NormalizedReport{
		Confidence: clamp(numberOr(raw["confidence"], defaultConfidence), 0, 1),
		Tactics:    normalizeTactics(raw["tactics"]),
		Receipts:   normalizeReceipts(raw),
		KPIs:       mapOr(raw["kpis"]),
		Narrative:  narrativeOr(raw["narrative"]),
	}

	rep.RiskScore = overallRisk(rep.Tactics)
	rep.RiskLabel = labelFor(raw["risk_label"], rep.RiskScore)
	assignContributions(rep.Tactics)
	return rep
}

func normalizeTactics(v any) []models.Tactic {
	entries, _ := v.([]any)
	tactics := make([]models.Tactic, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		tactics = append(tactics, normalizeTactic(m))
	}
	if len(tactics) == 0 {
		// Keeps the weighted-average denominator nonzero and the report
		// shape stable for empty or unusable classifier output.
		tactics = append(tactics, models.Tactic{
			ID:       models.TacticOther,
			Name:     "Other",
			Severity: 1,
			Examples: []string{},
		})
	}
	return tactics
}

func normalizeTactic(m map[string]any) models.Tactic {
	id := strings.ToLower(strings.TrimSpace(stringOr(m["id"], "")))
	if id == "" {
		id = strings.ToLower(strings.TrimSpace(stringOr(m["name"], "")))
	}
	if !models.IsTacticID(id) {
		id = models.TacticOther
	}
	name := strings.TrimSpace(stringOr(m["name"], ""))
	if name == "" {
		name = titleCase(id)
	}

	examples := normalizeExamples(m["examples"])
	likelihood := clamp(numberOr(m["likelihood"], 0), 0, 1)
	severity := clamp(numberOr(m["severity"], defaultSeverity), 1, 5)
	frequency := clamp(numberOr(m["frequency"], float64(len(examples))), 0, 5)

	return models.Tactic{
		ID:         id,
		Name:       name,
		Likelihood: likelihood,
		Severity:   severity,
		Frequency:  frequency,
		Examples:   examples,
		Score:      tacticScore(likelihood, severity, frequency),
	}
}

func normalizeExamples(v any) []string {
	items, _ := v.([]any)
	examples := make([]string, 0, min(len(items), maxExamples))
	for _, item := range items {
		s := strings.TrimSpace(stringOr(item, ""))
		if s == "" {
			continue
		}
		examples = append(examples, truncateRunes(s, maxQuoteRunes))
		if len(examples) == maxExamples {
			break
		}
	}
	return examples
}

// tacticScore weights likelihood over severity so a sustained pattern of
// moderate incidents outranks a single extreme one.
func tacticScore(likelihood, severity, frequency float64) int {
	s := 40*likelihood + 35*((severity-1)/4) + 25*math.Min(1, frequency/5)
	return int(math.Round(s))
}

// overallRisk is the weight-averaged tactic score on a 0..100 scale.
func overallRisk(tactics []models.Tactic) int {
	var weighted, weights float64
	for _, t := range tactics {
		w := models.TacticWeight(t.ID)
		weighted += float64(t.Score) / 100 * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return int(math.Round(weighted / weights * 100))
}

func labelFor(v any, score int) string {
	// An explicit upstream label is trusted verbatim.
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return riskLabel(score)
}

// riskLabel buckets a risk score: <34 low, 34..66 medium, >66 high.
func riskLabel(score int) string {
	switch {
	case score > 66:
		return models.RiskLabelHigh
	case score >= 34:
		return models.RiskLabelMedium
	default:
		return models.RiskLabelLow
	}
}

// assignContributions fills each tactic's share of the weighted score mass,
// rounded to one decimal place. All shares stay zero when no tactic scored.
func assignContributions(tactics []models.Tactic) {
	var total float64
	for _, t := range tactics {
		total += float64(t.Score) * models.TacticWeight(t.ID)
	}
	if total == 0 {
		return
	}
	for i := range tactics {
		share := float64(tactics[i].Score) * models.TacticWeight(tactics[i].ID) / total * 100
		tactics[i].ContributionPct = math.Round(share*10) / 10
	}
}

// normalizeReceipts accepts the documented flat list as well as the nested
// "highlights" shapes older prompts produced.
func normalizeReceipts(raw map[string]any) []models.Receipt {
	items, _ := raw["receipts"].([]any)
	if items == nil {
		if m, ok := raw["receipts"].(map[string]any); ok {
			items, _ = m["highlights"].([]any)
		}
	}
	if items == nil {
		items, _ = raw["highlights"].([]any)
	}

	receipts := make([]models.Receipt, 0, min(len(items), maxReceipts))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		receipts = append(receipts, models.Receipt{
			Quote:    truncateRunes(strings.TrimSpace(stringOr(m["quote"], "")), maxQuoteRunes),
			Category: strings.TrimSpace(stringOr(m["category"], "")),
			Source:   strings.TrimSpace(stringOr(m["source"], "")),
			Severity: clamp(numberOr(m["severity"], defaultSeverity), 1, 5),
		})
		if len(receipts) == maxReceipts {
			break
		}
	}
	return receipts
}

// numberOr coerces v to a finite float64, falling back to def for missing,
// malformed, or non-finite values. Numeric strings are accepted because the
// classifier cannot be trusted to type its numbers.
func numberOr(v any, def float64) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func mapOr(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func narrativeOr(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// titleCase renders a taxonomy id such as "blame-shifting" as a display name
// ("Blame Shifting").
func titleCase(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	if len(words) == 0 {
		return id
	}
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
