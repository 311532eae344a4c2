package decode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Interval is one labelled time span.
type Interval struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Annotation is the ordered interval list for one example plus the penalty it
// was decoded with.
type Annotation struct {
	Penalty   float64    `json:"penalty"`
	Intervals []Interval `json:"intervals"`
}

// Len returns the number of intervals.
func (a *Annotation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Intervals)
}

// MeanConfidence averages the interval confidences, 0 when empty.
func (a *Annotation) MeanConfidence() float64 {
	if a.Len() == 0 {
		return 0
	}
	var sum float64
	for _, iv := range a.Intervals {
		sum += iv.Confidence
	}
	return sum / float64(len(a.Intervals))
}

// Labels returns the interval labels in time order.
func (a *Annotation) Labels() []string {
	out := make([]string, 0, a.Len())
	if a == nil {
		return out
	}
	for _, iv := range a.Intervals {
		out = append(out, iv.Label)
	}
	return out
}

// WriteFile stores the annotation as indented JSON, replacing path atomically.
func (a *Annotation) WriteFile(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode annotation: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create annotation dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create annotation temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write annotation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close annotation: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename annotation: %w", err)
	}
	return nil
}

// ReadAnnotation loads an annotation written by WriteFile.
func ReadAnnotation(path string) (*Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read annotation: %w", err)
	}
	var a Annotation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse annotation %s: %w", path, err)
	}
	return &a, nil
}
