package store

import (
	"context"
	"strconv"
)

// Persona is a configured AI personality that authors simulated answers, replies and votes.
type Persona struct {
	ID int32

	// Name is unique and doubles as the username of the paired bot account.
	Name              string
	Description       string
	Expertise         string
	PersonalityTraits string
	InteractionStyle  string
	HelpfulnessLevel  int32 // 1-10
	StrictnessLevel   int32 // 1-10
	VerbosityLevel    int32 // 1-10
	// ActivityFrequency is the probability in [0, 1] that the persona reacts to an event.
	ActivityFrequency float64
	PromptTemplate    string
	AvatarURL         string
	IsActive          bool

	// Optional per-persona completion overrides.
	Model   string
	APIKey  string
	BaseURL string

	CreatedTs int64
	UpdatedTs int64
}

type FindPersona struct {
	ID       *int32
	Name     *string
	IsActive *bool
}

type UpdatePersona struct {
	ID int32

	Description       *string
	Expertise         *string
	PersonalityTraits *string
	InteractionStyle  *string
	HelpfulnessLevel  *int32
	StrictnessLevel   *int32
	VerbosityLevel    *int32
	ActivityFrequency *float64
	PromptTemplate    *string
	IsActive          *bool
	Model             *string
	APIKey            *string
	BaseURL           *string
	UpdatedTs         *int64
}

type DeletePersona struct {
	ID int32
}

const DefaultActivityFrequency = 0.7

// Normalize clamps the dials and activity frequency into their valid ranges.
func (p *Persona) Normalize() {
	clamp := func(v int32) int32 {
		if v < 1 {
			return 1
		}
		if v > 10 {
			return 10
		}
		return v
	}
	p.HelpfulnessLevel = clamp(p.HelpfulnessLevel)
	p.StrictnessLevel = clamp(p.StrictnessLevel)
	p.VerbosityLevel = clamp(p.VerbosityLevel)
	if p.ActivityFrequency < 0 {
		p.ActivityFrequency = 0
	}
	if p.ActivityFrequency > 1 {
		p.ActivityFrequency = 1
	}
}

func (s *Store) CreatePersona(ctx context.Context, create *Persona) (*Persona, error) {
	create.Normalize()
	persona, err := s.driver.CreatePersona(ctx, create)
	if err != nil {
		return nil, err
	}
	s.personaCache.Set(ctx, personaCacheKey(persona.ID), persona)
	return persona, nil
}

// UpsertPersona creates the persona or overwrites the one with the same name.
func (s *Store) UpsertPersona(ctx context.Context, upsert *Persona) (*Persona, error) {
	upsert.Normalize()
	persona, err := s.driver.UpsertPersona(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.personaCache.Set(ctx, personaCacheKey(persona.ID), persona)
	return persona, nil
}

func (s *Store) ListPersonas(ctx context.Context, find *FindPersona) ([]*Persona, error) {
	return s.driver.ListPersonas(ctx, find)
}

func (s *Store) GetPersona(ctx context.Context, find *FindPersona) (*Persona, error) {
	if find.ID != nil {
		if cached, ok := s.personaCache.Get(ctx, personaCacheKey(*find.ID)); ok {
			if persona, ok := cached.(*Persona); ok {
				return persona, nil
			}
		}
	}

	list, err := s.ListPersonas(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	s.personaCache.Set(ctx, personaCacheKey(list[0].ID), list[0])
	return list[0], nil
}

func (s *Store) UpdatePersona(ctx context.Context, update *UpdatePersona) (*Persona, error) {
	persona, err := s.driver.UpdatePersona(ctx, update)
	if err != nil {
		return nil, err
	}
	s.personaCache.Set(ctx, personaCacheKey(persona.ID), persona)
	return persona, nil
}

func (s *Store) DeletePersona(ctx context.Context, delete *DeletePersona) error {
	if err := s.driver.DeletePersona(ctx, delete); err != nil {
		return err
	}
	s.personaCache.Delete(ctx, personaCacheKey(delete.ID))
	return nil
}

func personaCacheKey(id int32) string {
	return strconv.Itoa(int(id))
}
