package ai

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// ModelCandidate is one backend model in the fallback roster.
type ModelCandidate struct {
	Name      string `yaml:"name" json:"name"`
	RateClass string `yaml:"rate_class" json:"rateLimit"`
	Primary   bool   `yaml:"primary" json:"recommended"`
}

// Roster is the ordered, immutable list of candidates. Order is fallback priority.
type Roster struct {
	candidates []ModelCandidate
}

// DefaultRoster is the quota-aware ordering: highest available quota first.
func DefaultRoster() *Roster {
	return &Roster{candidates: []ModelCandidate{
		{Name: "gemini-2.5-flash", RateClass: "5 RPM", Primary: true},
		{Name: "gemini-2.5-flash-lite", RateClass: "10 RPM"},
		{Name: "gemini-1.5-flash", RateClass: "stable"},
		{Name: "gemini-pro", RateClass: "legacy"},
	}}
}

// NewRoster validates and wraps candidates.
func NewRoster(candidates ...ModelCandidate) (*Roster, error) {
	if err := validateCandidates(candidates); err != nil {
		return nil, err
	}
	return &Roster{candidates: slices.Clone(candidates)}, nil
}

type rosterFile struct {
	Models []ModelCandidate `yaml:"models"`
}

// LoadRoster reads a YAML roster:
//
//	models:
//	  - name: gemini-2.5-flash
//	    rate_class: 5 RPM
//	    primary: true
func LoadRoster(path string) (*Roster, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var f rosterFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return NewRoster(f.Models...)
}

func validateCandidates(candidates []ModelCandidate) error {
	if len(candidates) == 0 {
		return criterio.NewFieldErrors("models", errors.New("at least one model is required"))
	}

	var errs criterio.FieldErrorsBuilder
	seen := map[string]bool{}
	primaries := 0
	for i, c := range candidates {
		field := fmt.Sprintf("models[%d].name", i)
		name := strings.TrimSpace(c.Name)
		switch {
		case name == "":
			errs = errs.Append(field, errors.New("required"))
		case seen[name]:
			errs = errs.Append(field, fmt.Errorf("duplicate model %q", name))
		}
		seen[name] = true
		if c.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		errs = errs.Append("models", errors.New("at most one model may be primary"))
	}
	return errs.ToError()
}

// Candidates returns a copy in priority order.
func (r *Roster) Candidates() []ModelCandidate {
	return slices.Clone(r.candidates)
}

// Names returns the candidate identifiers in priority order.
func (r *Roster) Names() []string {
	out := make([]string, len(r.candidates))
	for i, c := range r.candidates {
		out[i] = c.Name
	}
	return out
}

// Prefer returns a roster with name moved to the front and marked primary.
// A name not in the roster is added in front of the others.
func (r *Roster) Prefer(name string) *Roster {
	name = strings.TrimSpace(name)
	if name == "" {
		return r
	}

	out := make([]ModelCandidate, 0, len(r.candidates)+1)
	head := ModelCandidate{Name: name, Primary: true}
	for _, c := range r.candidates {
		if c.Name == name {
			head.RateClass = c.RateClass
			continue
		}
		c.Primary = false
		out = append(out, c)
	}
	return &Roster{candidates: append([]ModelCandidate{head}, out...)}
}
