package rubric

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// override mirrors Rubric with optional sections. Absent sections keep the
// built-in values; tags and canned lines are merged key by key.
type override struct {
	Profiles        map[Bucket]Profile   `yaml:"profiles"`
	Limits          *GlobalLimits        `yaml:"limits"`
	ScoreBands      []ScoreBand          `yaml:"score_bands"`
	TrajectoryBands []ScoreBand          `yaml:"trajectory_bands"`
	Tags            map[string]TagEffect `yaml:"tags"`
	QualityExitRisk map[Quality]int      `yaml:"quality_exit_risk"`
	Pacing          []PacingBand         `yaml:"pacing"`
	Termination     []TerminationRule    `yaml:"termination"`
	CannedLines     map[string][]string  `yaml:"canned_lines"`
}

// Load returns the built-in rubric merged with the YAML file at path. An empty
// path returns the built-in rubric unchanged.
func Load(path string) (*Rubric, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rubric %s: %w", path, err)
	}
	return r, nil
}

// Parse merges a YAML override document onto the built-in rubric and
// validates the result.
func Parse(data []byte) (*Rubric, error) {
	var o override
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	r := Default()
	for b, p := range o.Profiles {
		if !validBucket(b) {
			return nil, fmt.Errorf("unknown bucket %q", b)
		}
		r.Profiles[b] = p
	}
	if o.Limits != nil {
		r.Limits = *o.Limits
	}
	if len(o.ScoreBands) > 0 {
		r.ScoreBands = o.ScoreBands
	}
	if len(o.TrajectoryBands) > 0 {
		r.TrajectoryBands = o.TrajectoryBands
	}
	for name, eff := range o.Tags {
		r.Tags[name] = eff
	}
	for q, d := range o.QualityExitRisk {
		r.QualityExitRisk[q] = d
	}
	if len(o.Pacing) > 0 {
		r.Pacing = o.Pacing
	}
	if len(o.Termination) > 0 {
		r.Termination = o.Termination
	}
	for style, lines := range o.CannedLines {
		r.CannedLines[style] = lines
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return r, nil
}

// Marshal renders the rubric as YAML.
func (r *Rubric) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode rubric: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode rubric: %w", err)
	}
	return buf.Bytes(), nil
}

func validBucket(b Bucket) bool {
	for _, known := range Buckets {
		if b == known {
			return true
		}
	}
	return false
}
