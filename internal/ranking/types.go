package ranking

// DiseaseScore is the aggregate of one disease's phrase scores.
type DiseaseScore struct {
	Disease    string
	Score      float64
	BestPhrase string
	BestScore  float64
	// Phrases counts how many phrase scores were averaged.
	Phrases int
	// firstSeen is the position of the disease's first phrase in the flat sequence.
	firstSeen int
}

// ScoreBreakdown lists the per-phrase scores behind a DiseaseScore. It is used
// for debug logging only.
type ScoreBreakdown struct {
	Disease string
	Texts   []string
	Scores  []float64
}
