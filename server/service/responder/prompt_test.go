package responder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/overflew/store"
)

func TestFormatPrompt(t *testing.T) {
	persona := &store.Persona{
		Name:              "Code Guru",
		Description:       "a seasoned engineer",
		Expertise:         "Go",
		PersonalityTraits: "Precise",
		InteractionStyle:  "Direct",
		HelpfulnessLevel:  8,
		StrictnessLevel:   3,
		VerbosityLevel:    5,
	}

	tests := []struct {
		name     string
		template string
		content  string
		context  string
		want     string
	}{
		{
			name:     "all known placeholders",
			template: "{{name}}|{{description}}|{{expertise}}|{{personality_traits}}|{{interaction_style}}|{{helpfulness_level}}/{{strictness_level}}/{{verbosity_level}}|{{context}}|{{content}}",
			content:  "body",
			context:  "ctx",
			want:     "Code Guru|a seasoned engineer|Go|Precise|Direct|8/3/5|ctx|body",
		},
		{
			name:     "unknown placeholder renders empty",
			template: "Hi {{mood}}{{name}}",
			want:     "Hi Code Guru",
		},
		{
			name:     "substituted text is not rescanned",
			template: "{{content}} by {{name}}",
			content:  "what does {{name}} mean?",
			want:     "what does {{name}} mean? by Code Guru",
		},
		{
			name:     "whitespace inside braces",
			template: "{{ name }}",
			want:     "Code Guru",
		},
		{
			name:     "unterminated tag stays literal",
			template: "{{name}} says {{oops",
			want:     "Code Guru says {{oops",
		},
		{
			name:     "default template",
			template: "",
			content:  "body",
			context:  "ctx",
			want:     "You are Code Guru. a seasoned engineer\n\nctx\n\nbody",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := *persona
			p.PromptTemplate = tt.template
			assert.Equal(t, tt.want, FormatPrompt(&p, tt.content, tt.context))
		})
	}
}

func TestVoteFraming(t *testing.T) {
	persona := &store.Persona{Name: "Critic"}
	question := &store.Question{Title: "T", Body: "B"}
	comment := &store.Comment{Body: "C"}

	assert.Contains(t, questionVoteContent(persona, question, 1, 3), "received an upvote (score: 3)")
	assert.Contains(t, questionVoteContent(persona, question, -1, -2), "received a downvote (score: -2)")
	assert.Contains(t, commentVoteContent(persona, comment, 1, 4), "well-received")
	assert.Contains(t, commentVoteContent(persona, comment, -1, -1), "controversial")
}
