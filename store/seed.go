package store

import (
	"context"
	"embed"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed seed
var seedFS embed.FS

const seedPersonasFile = "seed/personas.yaml"

type seedPersona struct {
	Name              string  `yaml:"name"`
	Description       string  `yaml:"description"`
	Expertise         string  `yaml:"expertise"`
	PersonalityTraits string  `yaml:"personality_traits"`
	InteractionStyle  string  `yaml:"interaction_style"`
	HelpfulnessLevel  int32   `yaml:"helpfulness_level"`
	StrictnessLevel   int32   `yaml:"strictness_level"`
	VerbosityLevel    int32   `yaml:"verbosity_level"`
	ActivityFrequency float64 `yaml:"activity_frequency"`
	PromptTemplate    string  `yaml:"prompt_template"`
	Model             string  `yaml:"model,omitempty"`
}

type seedFile struct {
	Personas []seedPersona `yaml:"personas"`
}

// LoadSeedPersonas parses the bundled persona definitions.
func LoadSeedPersonas() ([]*Persona, error) {
	data, err := seedFS.ReadFile(seedPersonasFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read persona seed file")
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse persona seed file")
	}

	personas := make([]*Persona, 0, len(file.Personas))
	for _, p := range file.Personas {
		if p.Name == "" {
			return nil, errors.New("persona seed entry without name")
		}
		persona := &Persona{
			Name:              p.Name,
			Description:       p.Description,
			Expertise:         p.Expertise,
			PersonalityTraits: p.PersonalityTraits,
			InteractionStyle:  p.InteractionStyle,
			HelpfulnessLevel:  p.HelpfulnessLevel,
			StrictnessLevel:   p.StrictnessLevel,
			VerbosityLevel:    p.VerbosityLevel,
			ActivityFrequency: p.ActivityFrequency,
			PromptTemplate:    p.PromptTemplate,
			Model:             p.Model,
			IsActive:          true,
		}
		persona.Normalize()
		personas = append(personas, persona)
	}
	return personas, nil
}

// SeedPersonas upserts every bundled persona and returns the stored rows.
func (s *Store) SeedPersonas(ctx context.Context) ([]*Persona, error) {
	personas, err := LoadSeedPersonas()
	if err != nil {
		return nil, err
	}
	stored := make([]*Persona, 0, len(personas))
	err = s.WithTx(ctx, func(tx *Store) error {
		for _, p := range personas {
			persona, err := tx.UpsertPersona(ctx, p)
			if err != nil {
				return errors.Wrapf(err, "failed to seed persona %s", p.Name)
			}
			stored = append(stored, persona)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}
