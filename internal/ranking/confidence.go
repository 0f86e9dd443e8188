package ranking

// Confidence labels, highest first.
const (
	LabelAlmostCertain = "Almost certain"
	LabelVeryLikely    = "Very likely"
	LabelLikely        = "Likely"
	LabelUncertain     = "Uncertain"
	LabelUnlikely      = "Unlikely"
)

var thresholds = []struct {
	min   float64
	label string
}{
	{0.90, LabelAlmostCertain},
	{0.70, LabelVeryLikely},
	{0.50, LabelLikely},
	{0.30, LabelUncertain},
}

// ConfidenceLabel maps a normalized score to a human-readable bucket. Lower bounds
// are inclusive. The label is for logs and CLI output, never part of a result.
func ConfidenceLabel(score float64) string {
	for _, t := range thresholds {
		if score >= t.min {
			return t.label
		}
	}
	return LabelUnlikely
}
