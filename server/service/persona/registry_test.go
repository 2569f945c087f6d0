package persona

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hrygo/overflew/internal/random"
	"github.com/hrygo/overflew/store"
	teststore "github.com/hrygo/overflew/store/test"
)

func TestActivePersonas_FallbackChain(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	registry := NewRegistry(ts, nil)

	// Empty table: the default persona is persisted.
	personas, err := registry.ActivePersonas(ctx)
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.Equal(t, DefaultPersonaName, personas[0].Name)
	assert.Equal(t, int32(9), personas[0].HelpfulnessLevel)

	// Calling again does not duplicate it.
	personas, err = registry.ActivePersonas(ctx)
	require.NoError(t, err)
	require.Len(t, personas, 1)

	// Only inactive personas: all are returned.
	inactive := false
	_, err = ts.UpdatePersona(ctx, &store.UpdatePersona{ID: personas[0].ID, IsActive: &inactive})
	require.NoError(t, err)
	_, err = ts.CreatePersona(ctx, &store.Persona{Name: "Sleeper", ActivityFrequency: 0.5})
	require.NoError(t, err)
	personas, err = registry.ActivePersonas(ctx)
	require.NoError(t, err)
	assert.Len(t, personas, 2)

	// An active persona shadows the inactive ones.
	_, err = ts.CreatePersona(ctx, &store.Persona{Name: "Awake", ActivityFrequency: 0.5, IsActive: true})
	require.NoError(t, err)
	personas, err = registry.ActivePersonas(ctx)
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.Equal(t, "Awake", personas[0].Name)
}

func TestBotAccountFor(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	registry := NewRegistry(ts, nil)

	persona, err := ts.CreatePersona(ctx, &store.Persona{Name: "Code Reviewer", IsActive: true})
	require.NoError(t, err)

	const callers = 6
	users := make([]*store.User, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := registry.BotAccountFor(ctx, persona)
			assert.NoError(t, err)
			users[i] = user
		}(i)
	}
	wg.Wait()

	for _, user := range users {
		require.NotNil(t, user)
		assert.Equal(t, users[0].ID, user.ID)
	}
	bot := users[0]
	assert.True(t, bot.IsAI)
	assert.Equal(t, "Code Reviewer", bot.Username)
	assert.Equal(t, "code.reviewer@overflew.ai", bot.Email)
	require.NotNil(t, bot.PersonaID)
	assert.Equal(t, persona.ID, *bot.PersonaID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(bot.PasswordHash), []byte(botPlaceholderPassword)))

	isBot, err := registry.IsBotAccount(ctx, bot.ID)
	require.NoError(t, err)
	assert.True(t, isBot)
}

func TestBotAccountFor_HumanNameClash(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	registry := NewRegistry(ts, nil)

	human, err := ts.CreateUser(ctx, &store.User{Username: "Mimic"})
	require.NoError(t, err)
	persona, err := ts.CreatePersona(ctx, &store.Persona{Name: "Mimic", IsActive: true})
	require.NoError(t, err)

	_, err = registry.BotAccountFor(ctx, persona)
	assert.Error(t, err)

	isBot, err := registry.IsBotAccount(ctx, human.ID)
	require.NoError(t, err)
	assert.False(t, isBot)
}

func TestShouldRespond(t *testing.T) {
	tests := []struct {
		name      string
		frequency float64
		draw      float64
		want      bool
	}{
		{name: "always", frequency: 1.0, draw: 0.999, want: true},
		{name: "never", frequency: 0, draw: 0, want: false},
		{name: "below threshold", frequency: 0.7, draw: 0.69, want: true},
		{name: "at threshold", frequency: 0.7, draw: 0.7, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry(nil, random.NewFixed(tt.draw))
			assert.Equal(t, tt.want, registry.ShouldRespond(&store.Persona{ActivityFrequency: tt.frequency}))
		})
	}
}

func TestBotEmail(t *testing.T) {
	assert.Equal(t, "ai.assistant@overflew.ai", BotEmail("AI Assistant"))
	assert.Equal(t, "techguru@overflew.ai", BotEmail(" TechGuru "))
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	registry := NewRegistry(ts, nil)

	seeded, err := registry.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Len(t, seeded, 15)

	personas, err := registry.ActivePersonas(ctx)
	require.NoError(t, err)
	assert.Len(t, personas, 15)
}
