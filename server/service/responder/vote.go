package responder

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hrygo/overflew/internal/random"
	"github.com/hrygo/overflew/store"
)

const (
	baseUpvoteProbability = 0.7
	minUpvoteProbability  = 0.1
	maxUpvoteProbability  = 0.9
	keywordBoost          = 2
)

var (
	negativeKeywords = []string{"wrong", "incorrect", "bad", "terrible", "awful"}
	positiveKeywords = []string{"thanks", "helpful", "great", "excellent", "good"}
)

// DetermineVoteType decides the simulated vote persona casts on content.
//
// Keyword adjustments run first: code in the content raises helpfulness for programming
// personas, negative words raise strictness and positive words raise helpfulness. The upvote
// probability is then 0.7 + helpfulness/100 - strictness/100 clamped to [0.1, 0.9], and a single
// draw below it means an upvote. Empty content yields 0 and consumes no draw.
func DetermineVoteType(src random.Source, persona *store.Persona, content string) int32 {
	if strings.TrimSpace(content) == "" {
		return 0
	}
	p := UpvoteProbability(persona, content)
	if random.Or(src).Float64() < p {
		return store.VoteUp
	}
	return store.VoteDown
}

// UpvoteProbability returns the clamped upvote probability after keyword adjustments.
func UpvoteProbability(persona *store.Persona, content string) float64 {
	helpfulness := persona.HelpfulnessLevel
	strictness := persona.StrictnessLevel

	lower := strings.ToLower(content)
	if HasCodeBlock(content) && strings.Contains(strings.ToLower(persona.Expertise), "programming") {
		helpfulness += keywordBoost
	}
	if containsAny(lower, negativeKeywords) {
		strictness += keywordBoost
	}
	if containsAny(lower, positiveKeywords) {
		helpfulness += keywordBoost
	}

	p := baseUpvoteProbability + float64(helpfulness)/100 - float64(strictness)/100
	return min(max(p, minUpvoteProbability), maxUpvoteProbability)
}

// HasCodeBlock reports whether content contains a fenced or indented markdown code block.
func HasCodeBlock(content string) bool {
	if strings.Contains(content, "```") {
		return true
	}
	source := []byte(content)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))
	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
