package model

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"chordseq/internal/faults"
	"chordseq/internal/vocab"
)

// Validator kinds.
const (
	KindSoftmax = "softmax"
	KindMargin  = "margin"
	KindChroma  = "chroma"
	KindTonnetz = "tonnetz"
)

// defaultTemplateClasses is the vocabulary chroma and tonnetz targets are
// spelled from when a definition names none.
const defaultTemplateClasses = 157

var kinds = []string{KindSoftmax, KindMargin, KindChroma, KindTonnetz}

// Definition describes a validator graph.
type Definition struct {
	Name       string   `toml:"name"`
	Kind       string   `toml:"kind"`
	Inputs     []string `toml:"inputs"`
	FeatureDim int      `toml:"feature_dim"`
	Classes    int      `toml:"classes"`
}

// LoadDefinition reads a validator definition. When classes is omitted it is
// taken from a classifier-Vnnn graph name, or defaults to the 157-class
// vocabulary for chroma and tonnetz validators.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, faults.Wrap(faults.ErrConfiguration, "model", "load definition", path, err)
	}
	var def Definition
	if err := toml.Unmarshal(data, &def); err != nil {
		return Definition{}, faults.Wrap(faults.ErrConfiguration, "model", "parse definition", path, err)
	}
	def.Name = strings.TrimSpace(def.Name)
	def.Kind = strings.ToLower(strings.TrimSpace(def.Kind))
	if def.Classes == 0 {
		if v, err := vocab.ForGraphName(def.Name); err == nil {
			def.Classes = v.Size()
		} else if def.regression() {
			def.Classes = defaultTemplateClasses
		}
	}
	if len(def.Inputs) == 0 {
		def.Inputs = def.defaultInputs()
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Save writes the definition as TOML.
func (d Definition) Save(path string) error {
	data, err := toml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (d Definition) defaultInputs() []string {
	inputs := []string{InputFeatures, InputChordIdx}
	if d.Kind == KindMargin {
		inputs = append(inputs, InputMargin)
	}
	return inputs
}

func (d Definition) regression() bool {
	return d.Kind == KindChroma || d.Kind == KindTonnetz
}

// OutputDim is the width of the validator's output layer: one score per class
// for classifiers, the template width for chroma and tonnetz regressors.
func (d Definition) OutputDim() int {
	switch d.Kind {
	case KindChroma:
		return vocab.ChromaDim
	case KindTonnetz:
		return vocab.TonnetzDim
	default:
		return d.Classes
	}
}

// Vocabulary resolves the label map the validator's classes index into.
func (d Definition) Vocabulary() (*vocab.Vocabulary, error) {
	if v, err := vocab.ForGraphName(d.Name); err == nil {
		return v, nil
	}
	return vocab.New(d.Classes)
}

// Validate checks the definition is complete and self-consistent.
func (d Definition) Validate() error {
	fail := func(msg string) error {
		return faults.Wrap(faults.ErrConfiguration, "model", "definition", msg, nil)
	}
	if d.Name == "" {
		return fail("name is required")
	}
	if !slices.Contains(kinds, d.Kind) {
		return fail(fmt.Sprintf("kind must be one of %s, got %q", strings.Join(kinds, ", "), d.Kind))
	}
	if d.FeatureDim <= 0 {
		return fail("feature_dim must be positive")
	}
	if d.Classes < 2 {
		return fail("classes must be at least 2")
	}
	for _, required := range []string{InputFeatures, InputChordIdx} {
		if !slices.Contains(d.Inputs, required) {
			return fail(fmt.Sprintf("inputs must include %q", required))
		}
	}
	if d.Kind == KindMargin && !slices.Contains(d.Inputs, InputMargin) {
		return fail(fmt.Sprintf("margin validators must declare the %q input", InputMargin))
	}
	return nil
}
