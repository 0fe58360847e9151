package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/redflag-ai/redflag/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func onlyTactic(t *testing.T, rep models.NormalizedReport) models.Tactic {
	t.Helper()
	if len(rep.Tactics) != 1 {
		t.Fatalf("expected exactly one tactic, got %d: %+v", len(rep.Tactics), rep.Tactics)
	}
	return rep.Tactics[0]
}

func TestNormalizeEmptyPayload(t *testing.T) {
	for _, raw := range []map[string]any{nil, {}} {
		rep := Normalize(raw)

		if rep.RiskScore != 0 {
			t.Fatalf("risk_score = %d, want 0", rep.RiskScore)
		}
		if rep.RiskLabel != models.RiskLabelLow {
			t.Fatalf("risk_label = %q, want %q", rep.RiskLabel, models.RiskLabelLow)
		}
		if !almostEqual(rep.Confidence, 0.85) {
			t.Fatalf("confidence = %v, want 0.85", rep.Confidence)
		}

		tac := onlyTactic(t, rep)
		if tac.ID != models.TacticOther || tac.Name != "Other" {
			t.Fatalf("placeholder tactic = %q/%q, want other/Other", tac.ID, tac.Name)
		}
		if tac.Score != 0 || tac.Likelihood != 0 || tac.Severity != 1 || tac.Frequency != 0 {
			t.Fatalf("placeholder tactic not zero-scored: %+v", tac)
		}
		if tac.ContributionPct != 0 {
			t.Fatalf("placeholder contribution = %v, want 0", tac.ContributionPct)
		}

		if len(rep.Receipts) != 0 {
			t.Fatalf("expected no receipts, got %d", len(rep.Receipts))
		}
		if rep.KPIs == nil || len(rep.KPIs) != 0 {
			t.Fatalf("kpis = %#v, want empty map", rep.KPIs)
		}
		if rep.Narrative != "" {
			t.Fatalf("narrative = %q, want empty", rep.Narrative)
		}
	}
}

func TestTacticScoreFormula(t *testing.T) {
	cases := []struct {
		likelihood float64
		severity   float64
		frequency  float64
		want       int
	}{
		{1, 5, 5, 100},
		{0, 1, 0, 0},
		{1, 1, 0, 40},
		{0, 5, 0, 35},
		{0, 1, 5, 25},
		{0.5, 3, 2, 48}, // 20 + 17.5 + 10 = 47.5
		{0.8, 4, 3, 73}, // 32 + 26.25 + 15 = 73.25
		{1, 5, 10, 100}, // frequency term saturates at 1
	}
	for _, tc := range cases {
		got := tacticScore(tc.likelihood, tc.severity, tc.frequency)
		if got != tc.want {
			t.Fatalf("tacticScore(%v, %v, %v) = %d, want %d", tc.likelihood, tc.severity, tc.frequency, got, tc.want)
		}
	}
}

func TestNormalizeClampsAndDefaults(t *testing.T) {
	cases := []struct {
		name           string
		tactic         map[string]any
		wantLikelihood float64
		wantSeverity   float64
		wantFrequency  float64
		wantScore      int
	}{
		{
			name:           "all out of range",
			tactic:         map[string]any{"id": "gaslighting", "likelihood": 1.7, "severity": 7, "frequency": 9},
			wantLikelihood: 1, wantSeverity: 5, wantFrequency: 5, wantScore: 100,
		},
		{
			name:           "negative likelihood, missing rest",
			tactic:         map[string]any{"id": "gaslighting", "likelihood": -0.5},
			wantLikelihood: 0, wantSeverity: 3, wantFrequency: 0, wantScore: 18,
		},
		{
			name:           "numeric strings accepted",
			tactic:         map[string]any{"id": "gaslighting", "likelihood": "0.9", "severity": "4", "frequency": "2"},
			wantLikelihood: 0.9, wantSeverity: 4, wantFrequency: 2, wantScore: 72,
		},
		{
			name: "malformed values fall back",
			tactic: map[string]any{
				"id": "gaslighting", "likelihood": "abc", "severity": math.NaN(),
				"frequency": "lots", "examples": []any{"one", "two"},
			},
			wantLikelihood: 0, wantSeverity: 3, wantFrequency: 2, wantScore: 28,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := Normalize(map[string]any{"tactics": []any{tc.tactic}})
			tac := onlyTactic(t, rep)
			if !almostEqual(tac.Likelihood, tc.wantLikelihood) {
				t.Fatalf("likelihood = %v, want %v", tac.Likelihood, tc.wantLikelihood)
			}
			if !almostEqual(tac.Severity, tc.wantSeverity) {
				t.Fatalf("severity = %v, want %v", tac.Severity, tc.wantSeverity)
			}
			if !almostEqual(tac.Frequency, tc.wantFrequency) {
				t.Fatalf("frequency = %v, want %v", tac.Frequency, tc.wantFrequency)
			}
			if tac.Score != tc.wantScore {
				t.Fatalf("score = %d, want %d", tac.Score, tc.wantScore)
			}
			// A single tactic's weight cancels out of the weighted average.
			if rep.RiskScore != tc.wantScore {
				t.Fatalf("risk_score = %d, want %d", rep.RiskScore, tc.wantScore)
			}
		})
	}
}

func TestNormalizeConfidence(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  float64
	}{
		{"missing", nil, 0.85},
		{"above range", 3.0, 1},
		{"negative string", "-2", 0},
		{"numeric string", "0.42", 0.42},
		{"wrong type", true, 0.85},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := map[string]any{}
			if tc.value != nil {
				raw["confidence"] = tc.value
			}
			rep := Normalize(raw)
			if !almostEqual(rep.Confidence, tc.want) {
				t.Fatalf("confidence = %v, want %v", rep.Confidence, tc.want)
			}
		})
	}
}

func TestTacticIdentityResolution(t *testing.T) {
	cases := []struct {
		name     string
		tactic   map[string]any
		wantID   string
		wantName string
	}{
		{"id case-folded", map[string]any{"id": "Gaslighting"}, "gaslighting", "Gaslighting"},
		{"name used when id missing", map[string]any{"name": "DARVO"}, "darvo", "DARVO"},
		{"unknown id maps to other", map[string]any{"id": "love-bombing"}, "other", "Other"},
		{"hyphenated id title-cased", map[string]any{"id": "BLAME-SHIFTING"}, "blame-shifting", "Blame Shifting"},
		{"nothing at all", map[string]any{}, "other", "Other"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := Normalize(map[string]any{"tactics": []any{tc.tactic}})
			tac := onlyTactic(t, rep)
			if tac.ID != tc.wantID {
				t.Fatalf("id = %q, want %q", tac.ID, tc.wantID)
			}
			if tac.Name != tc.wantName {
				t.Fatalf("name = %q, want %q", tac.Name, tc.wantName)
			}
		})
	}
}

func TestNormalizeSkipsNonObjectTactics(t *testing.T) {
	rep := Normalize(map[string]any{
		"tactics": []any{42, "contempt", []any{"nested"}, map[string]any{"id": "contempt"}},
	})
	tac := onlyTactic(t, rep)
	if tac.ID != "contempt" {
		t.Fatalf("surviving tactic = %q, want contempt", tac.ID)
	}
}

func TestNormalizeTacticOrderPreserved(t *testing.T) {
	rep := Normalize(map[string]any{
		"tactics": []any{
			map[string]any{"id": "darvo"},
			map[string]any{"id": "gaslighting"},
			map[string]any{"id": "threats"},
		},
	})
	got := make([]string, 0, len(rep.Tactics))
	for _, tac := range rep.Tactics {
		got = append(got, tac.ID)
	}
	want := []string{"darvo", "gaslighting", "threats"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tactic order = %v, want %v", got, want)
		}
	}
}

func TestExamplesCapAndTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	rep := Normalize(map[string]any{
		"tactics": []any{map[string]any{
			"id":       "threats",
			"examples": []any{long, " padded ", "", "c", 7, "d", "e", "f"},
		}},
	})
	tac := onlyTactic(t, rep)

	if len(tac.Examples) != maxExamples {
		t.Fatalf("examples len = %d, want %d", len(tac.Examples), maxExamples)
	}
	if len([]rune(tac.Examples[0])) != maxQuoteRunes {
		t.Fatalf("example 0 length = %d runes, want %d", len([]rune(tac.Examples[0])), maxQuoteRunes)
	}
	if tac.Examples[1] != "padded" {
		t.Fatalf("example 1 = %q, want trimmed", tac.Examples[1])
	}
	// Frequency defaults to the number of usable examples.
	if !almostEqual(tac.Frequency, float64(maxExamples)) {
		t.Fatalf("frequency = %v, want %d", tac.Frequency, maxExamples)
	}
}

func TestSingleTacticRiskMatchesItsScore(t *testing.T) {
	// With one tactic the weighted average collapses to that tactic's score,
	// even for the heaviest-weighted id.
	rep := Normalize(map[string]any{
		"tactics": []any{
			map[string]any{"id": "threats", "likelihood": 1, "severity": 5, "frequency": 5},
		},
	})
	if rep.Tactics[0].Score != 100 {
		t.Fatalf("tactic score = %d, want 100", rep.Tactics[0].Score)
	}
	if rep.RiskScore != 100 {
		t.Fatalf("risk_score = %d, want 100", rep.RiskScore)
	}
}

func TestOverallRiskWeighting(t *testing.T) {
	// threats carries weight 1.40, stonewalling 0.95.
	rep := Normalize(map[string]any{
		"tactics": []any{
			map[string]any{"id": "threats", "likelihood": 1, "severity": 5, "frequency": 5},
			map[string]any{"id": "stonewalling", "likelihood": 0, "severity": 1, "frequency": 0},
		},
	})
	// (1.00*1.40 + 0.00*0.95) / 2.35 = 0.5957 -> 60
	if rep.RiskScore != 60 {
		t.Fatalf("risk_score = %d, want 60", rep.RiskScore)
	}
	if rep.RiskLabel != models.RiskLabelMedium {
		t.Fatalf("risk_label = %q, want medium", rep.RiskLabel)
	}
	if !almostEqual(rep.Tactics[0].ContributionPct, 100) {
		t.Fatalf("threats contribution = %v, want 100", rep.Tactics[0].ContributionPct)
	}
	if !almostEqual(rep.Tactics[1].ContributionPct, 0) {
		t.Fatalf("stonewalling contribution = %v, want 0", rep.Tactics[1].ContributionPct)
	}
}

func TestOverallRiskEqualScoresUnmovedByWeights(t *testing.T) {
	// Equal per-tactic scores must produce that same overall score no matter
	// how the weights differ.
	rep := Normalize(map[string]any{
		"tactics": []any{
			map[string]any{"id": "threats", "likelihood": 1, "severity": 1, "frequency": 2},      // 50
			map[string]any{"id": "stonewalling", "likelihood": 1, "severity": 1, "frequency": 2}, // 50
		},
	})
	if rep.RiskScore != 50 {
		t.Fatalf("risk_score = %d, want 50", rep.RiskScore)
	}

	sum := rep.Tactics[0].ContributionPct + rep.Tactics[1].ContributionPct
	if math.Abs(sum-100) > 0.3 {
		t.Fatalf("contributions sum to %v, want ~100", sum)
	}
	if rep.Tactics[0].ContributionPct <= rep.Tactics[1].ContributionPct {
		t.Fatalf("heavier-weighted tactic should contribute more: %v vs %v",
			rep.Tactics[0].ContributionPct, rep.Tactics[1].ContributionPct)
	}
}

func TestRiskLabelBuckets(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{0, models.RiskLabelLow},
		{33, models.RiskLabelLow},
		{34, models.RiskLabelMedium},
		{66, models.RiskLabelMedium},
		{67, models.RiskLabelHigh},
		{100, models.RiskLabelHigh},
	}
	for _, tc := range cases {
		if got := riskLabel(tc.score); got != tc.want {
			t.Fatalf("riskLabel(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestRiskLabelFromClassifierTrusted(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"verbatim even off-vocabulary", "catastrophic", "catastrophic"},
		{"trimmed", "  high ", "high"},
		{"blank falls back to derived", "   ", models.RiskLabelLow},
		{"wrong type falls back", 5, models.RiskLabelLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := Normalize(map[string]any{"risk_label": tc.value})
			if rep.RiskLabel != tc.want {
				t.Fatalf("risk_label = %q, want %q", rep.RiskLabel, tc.want)
			}
		})
	}
}

func TestReceiptsShapes(t *testing.T) {
	receipt := map[string]any{"quote": " You always ruin everything. ", "category": "blame-shifting", "source": "partner", "severity": 9}

	cases := []struct {
		name string
		raw  map[string]any
	}{
		{"flat list", map[string]any{"receipts": []any{receipt}}},
		{"nested highlights", map[string]any{"receipts": map[string]any{"highlights": []any{receipt}}}},
		{"top-level highlights", map[string]any{"highlights": []any{receipt}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := Normalize(tc.raw)
			if len(rep.Receipts) != 1 {
				t.Fatalf("receipts len = %d, want 1", len(rep.Receipts))
			}
			r := rep.Receipts[0]
			if r.Quote != "You always ruin everything." {
				t.Fatalf("quote = %q, want trimmed", r.Quote)
			}
			if r.Category != "blame-shifting" || r.Source != "partner" {
				t.Fatalf("category/source = %q/%q", r.Category, r.Source)
			}
			if !almostEqual(r.Severity, 5) {
				t.Fatalf("severity = %v, want clamped to 5", r.Severity)
			}
		})
	}
}

func TestReceiptsCapAndHardening(t *testing.T) {
	items := make([]any, 0, 35)
	for i := 0; i < 35; i++ {
		items = append(items, map[string]any{"quote": fmt.Sprintf("quote %d", i)})
	}
	items[1] = "not an object"
	items[2] = map[string]any{"quote": strings.Repeat("x", 400), "severity": "high"}

	rep := Normalize(map[string]any{"receipts": items})
	if len(rep.Receipts) != maxReceipts {
		t.Fatalf("receipts len = %d, want %d", len(rep.Receipts), maxReceipts)
	}
	hardened := rep.Receipts[1] // items[2] lands at index 1 after the skip
	if len([]rune(hardened.Quote)) != maxQuoteRunes {
		t.Fatalf("quote length = %d runes, want %d", len([]rune(hardened.Quote)), maxQuoteRunes)
	}
	if !almostEqual(hardened.Severity, defaultSeverity) {
		t.Fatalf("severity = %v, want default %v", hardened.Severity, defaultSeverity)
	}
}

func TestKPIsAndNarrative(t *testing.T) {
	rep := Normalize(map[string]any{
		"kpis":      map[string]any{"messages_analyzed": 42.0},
		"narrative": "  Watch for repeated denial of events you remember clearly.  ",
	})
	if got := rep.KPIs["messages_analyzed"]; got != 42.0 {
		t.Fatalf("kpis passthrough = %v, want 42", got)
	}
	if rep.Narrative != "Watch for repeated denial of events you remember clearly." {
		t.Fatalf("narrative = %q, want trimmed", rep.Narrative)
	}

	rep = Normalize(map[string]any{"kpis": []any{"wrong"}, "narrative": 7})
	if rep.KPIs == nil || len(rep.KPIs) != 0 {
		t.Fatalf("kpis = %#v, want empty map", rep.KPIs)
	}
	if rep.Narrative != "" {
		t.Fatalf("narrative = %q, want empty", rep.Narrative)
	}
}

// Every payload, however broken, must normalize into a report that passes
// the published schema.
func TestNormalizeOutputAlwaysSchemaValid(t *testing.T) {
	corpus := []struct {
		name string
		raw  map[string]any
	}{
		{"empty", map[string]any{}},
		{"tactics wrong type", map[string]any{"tactics": "not a list"}},
		{"tactics of garbage", map[string]any{"tactics": []any{1, "x", nil}}},
		{"receipts wrong type", map[string]any{"receipts": 42}},
		{"everything wrong type", map[string]any{
			"risk_label": []any{}, "confidence": "??", "tactics": map[string]any{},
			"receipts": "no", "kpis": "no", "narrative": map[string]any{},
		}},
		{"realistic", map[string]any{
			"confidence": 0.9,
			"risk_label": "high",
			"narrative":  "Several messages show a pattern of denial and blame.",
			"kpis":       map[string]any{"messages_analyzed": 51.0, "speakers": 2.0},
			"tactics": []any{
				map[string]any{"id": "gaslighting", "likelihood": 0.9, "severity": 4, "frequency": 3, "examples": []any{"That never happened."}},
				map[string]any{"id": "threats", "likelihood": 0.6, "severity": 5, "examples": []any{"You'll regret this."}},
			},
			"receipts": []any{
				map[string]any{"quote": "That never happened.", "category": "gaslighting", "source": "partner", "severity": 4},
			},
		}},
	}

	for _, tc := range corpus {
		t.Run(tc.name, func(t *testing.T) {
			rep := Normalize(tc.raw)
			data, err := json.Marshal(rep)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if err := ValidateReportJSON(data); err != nil {
				t.Fatalf("schema validation failed: %v\npayload: %s", err, data)
			}
		})
	}
}

func TestValidateReportJSONRejectsBadReport(t *testing.T) {
	bad := `{"risk_score": 101, "risk_label": "high", "confidence": 0.5, "tactics": [], "receipts": [], "kpis": {}}`
	if err := ValidateReportJSON([]byte(bad)); err == nil {
		t.Fatal("expected schema rejection for out-of-range risk_score and empty tactics")
	}
}
