package models

import "time"

// Risk labels derived from the overall risk score.
const (
	RiskLabelLow    = "low"
	RiskLabelMedium = "medium"
	RiskLabelHigh   = "high"
)

// Tactic is one scored manipulation pattern inside a normalized report.
type Tactic struct {
	ID              string   `firestore:"id" json:"id"`
	Name            string   `firestore:"name" json:"name"`
	Likelihood      float64  `firestore:"likelihood" json:"likelihood"`
	Severity        float64  `firestore:"severity" json:"severity"`
	Frequency       float64  `firestore:"frequency" json:"frequency"`
	Examples        []string `firestore:"examples" json:"examples"`
	Score           int      `firestore:"score" json:"score"`
	ContributionPct float64  `firestore:"contribution_pct" json:"contribution_pct"`
}

// Receipt is one quoted piece of evidence backing the analysis.
type Receipt struct {
	Quote    string  `firestore:"quote" json:"quote"`
	Category string  `firestore:"category,omitempty" json:"category,omitempty"`
	Source   string  `firestore:"source,omitempty" json:"source,omitempty"`
	Severity float64 `firestore:"severity" json:"severity"`
}

// NormalizedReport is the canonical output contract of the scoring engine.
// Every field is guaranteed in-range for any classifier output, including
// an empty object.
type NormalizedReport struct {
	RiskScore  int            `firestore:"risk_score" json:"risk_score"`
	RiskLabel  string         `firestore:"risk_label" json:"risk_label"`
	Confidence float64        `firestore:"confidence" json:"confidence"`
	Tactics    []Tactic       `firestore:"tactics" json:"tactics"`
	Receipts   []Receipt      `firestore:"receipts" json:"receipts"`
	KPIs       map[string]any `firestore:"kpis" json:"kpis"`
	Narrative  string         `firestore:"narrative,omitempty" json:"narrative,omitempty"`
}

// Report is the persisted analysis result for one job. Its document id equals
// the job id, so a duplicate pipeline run overwrites rather than duplicates.
type Report struct {
	ID            string           `firestore:"-" json:"reportId"`
	JobID         string           `firestore:"jobId" json:"jobId"`
	UserID        string           `firestore:"userId,omitempty" json:"userId,omitempty"`
	JSON          NormalizedReport `firestore:"json" json:"json"`
	ImagesDeleted bool             `firestore:"images_deleted" json:"images_deleted"`
	CreatedAt     time.Time        `firestore:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time        `firestore:"updatedAt" json:"updatedAt"`
}
