// Package persona gives the orchestrator read access to AI personas and their bot accounts.
package persona

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/hrygo/overflew/internal/random"
	"github.com/hrygo/overflew/store"
)

const (
	DefaultPersonaName = "AI Assistant"

	botEmailDomain = "overflew.ai"
	// Bot accounts never log in; the hash only keeps the column non-empty.
	botPlaceholderPassword = "overflew-bot-account-login-disabled"
)

// DefaultPersona is persisted when no persona exists at all.
func DefaultPersona() *store.Persona {
	return &store.Persona{
		Name:              DefaultPersonaName,
		Description:       "A helpful AI assistant that provides accurate and concise answers.",
		Expertise:         "General knowledge,Programming,Problem solving",
		PersonalityTraits: "Helpful,Friendly,Knowledgeable",
		InteractionStyle:  "Conversational",
		HelpfulnessLevel:  9,
		StrictnessLevel:   5,
		VerbosityLevel:    7,
		ActivityFrequency: store.DefaultActivityFrequency,
		PromptTemplate: "You are {{name}}, {{description}}\n" +
			"Your expertise: {{expertise}}. Your personality: {{personality_traits}}. Style: {{interaction_style}}.\n\n" +
			"{{context}}\n\nRespond to the following:\n\n{{content}}",
		IsActive: true,
	}
}

type Registry struct {
	store *store.Store
	rand  random.Source

	hashOnce sync.Once
	hash     string
	hashErr  error
}

// NewRegistry creates a registry. A nil src uses the process-wide random source.
func NewRegistry(s *store.Store, src random.Source) *Registry {
	return &Registry{store: s, rand: random.Or(src)}
}

// ActivePersonas returns active personas, falling back to all personas, and finally to the
// persisted default persona so callers never see an empty set.
func (r *Registry) ActivePersonas(ctx context.Context) ([]*store.Persona, error) {
	active := true
	personas, err := r.store.ListPersonas(ctx, &store.FindPersona{IsActive: &active})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active personas")
	}
	if len(personas) > 0 {
		return personas, nil
	}

	personas, err = r.store.ListPersonas(ctx, &store.FindPersona{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list personas")
	}
	if len(personas) > 0 {
		slog.Warn("no active personas, falling back to all personas", slog.Int("count", len(personas)))
		return personas, nil
	}

	persona, err := r.store.UpsertPersona(ctx, DefaultPersona())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create default persona")
	}
	slog.Info("created default persona", slog.String("persona", persona.Name))
	return []*store.Persona{persona}, nil
}

// GetPersona returns the persona or nil when it does not exist.
func (r *Registry) GetPersona(ctx context.Context, id int32) (*store.Persona, error) {
	return r.store.GetPersona(ctx, &store.FindPersona{ID: &id})
}

// BotAccountFor returns the bot account paired with persona, creating it on first use.
// Creation is an insert-or-fetch on the unique username, so concurrent callers share one row.
func (r *Registry) BotAccountFor(ctx context.Context, persona *store.Persona) (*store.User, error) {
	user, err := r.store.GetUser(ctx, &store.FindUser{PersonaID: &persona.ID})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find bot account for persona %s", persona.Name)
	}
	if user != nil {
		return user, nil
	}

	hash, err := r.passwordHash()
	if err != nil {
		return nil, err
	}
	user, err = r.store.EnsureUser(ctx, &store.User{
		Username:     persona.Name,
		Email:        BotEmail(persona.Name),
		PasswordHash: hash,
		IsAI:         true,
		PersonaID:    &persona.ID,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to ensure bot account for persona %s", persona.Name)
	}
	if !user.IsAI {
		return nil, errors.Errorf("username %q belongs to a human account", persona.Name)
	}
	if user.PersonaID == nil || *user.PersonaID != persona.ID {
		// The persona was recreated under the same name; relink the existing bot.
		user, err = r.store.UpdateUser(ctx, &store.UpdateUser{ID: user.ID, PersonaID: &persona.ID})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to relink bot account for persona %s", persona.Name)
		}
	}
	return user, nil
}

// IsBotAccount reports whether userID belongs to an AI bot. Unknown users are not bots.
func (r *Registry) IsBotAccount(ctx context.Context, userID int32) (bool, error) {
	user, err := r.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return false, err
	}
	return user != nil && user.IsAI, nil
}

// ShouldRespond is the per-call activity gate: true with probability persona.ActivityFrequency.
func (r *Registry) ShouldRespond(persona *store.Persona) bool {
	return random.Chance(r.rand, persona.ActivityFrequency)
}

// SeedDefaults upserts the bundled personas.
func (r *Registry) SeedDefaults(ctx context.Context) ([]*store.Persona, error) {
	return r.store.SeedPersonas(ctx)
}

// BotEmail derives the bot account email from a persona name.
func BotEmail(name string) string {
	local := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", ".")
	return local + "@" + botEmailDomain
}

func (r *Registry) passwordHash() (string, error) {
	r.hashOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(botPlaceholderPassword), bcrypt.DefaultCost)
		if err != nil {
			r.hashErr = errors.Wrap(err, "failed to hash bot password")
			return
		}
		r.hash = string(hash)
	})
	return r.hash, r.hashErr
}
