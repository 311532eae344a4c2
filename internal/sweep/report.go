package sweep

import "chordseq/internal/decode"

// Row summarises one decode of a sweep.
type Row struct {
	Penalty        float64
	Intervals      int
	MeanConfidence float64
	Failed         bool
}

// Summarise pairs each penalty with its annotation; a nil annotation marks a
// failed decode.
func Summarise(penalties []float64, annotations []*decode.Annotation) []Row {
	rows := make([]Row, len(penalties))
	for i, p := range penalties {
		rows[i] = Row{Penalty: p}
		if i >= len(annotations) || annotations[i] == nil {
			rows[i].Failed = true
			continue
		}
		rows[i].Intervals = annotations[i].Len()
		rows[i].MeanConfidence = annotations[i].MeanConfidence()
	}
	return rows
}
