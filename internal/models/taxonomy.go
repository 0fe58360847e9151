package models

// TacticOther is the catch-all id for patterns outside the fixed taxonomy.
const TacticOther = "other"

// TacticIDs is the fixed classification taxonomy, in prompt presentation
// order. The classifier must map every detected pattern to one of these or
// to "other"; the normalizer enforces the same mapping on untrusted output.
var TacticIDs = []string{
	"gaslighting",
	"darvo",
	"blame-shifting",
	"minimization",
	"stonewalling",
	"contempt",
	"guilt-tripping",
	"threats",
	"coercion",
	"triangulation",
	"boundaries",
	"projection",
}

var tacticIDSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(TacticIDs))
	for _, id := range TacticIDs {
		s[id] = struct{}{}
	}
	return s
}()

// tacticWeights skews the overall risk average toward the patterns that
// escalate fastest. Anything unlisted (including "other") weighs 1.0.
var tacticWeights = map[string]float64{
	"threats":      1.40,
	"coercion":     1.30,
	"gaslighting":  1.20,
	"darvo":        1.10,
	"contempt":     1.05,
	"stonewalling": 0.95,
}

// IsTacticID reports whether id belongs to the fixed taxonomy.
func IsTacticID(id string) bool {
	_, ok := tacticIDSet[id]
	return ok
}

// TacticWeight returns the scoring weight for a resolved tactic id.
func TacticWeight(id string) float64 {
	if w, ok := tacticWeights[id]; ok {
		return w
	}
	return 1.0
}
