package responder

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/hrygo/overflew/store"
)

// FormatPrompt fills the persona's template in a single pass. Known placeholders take the
// persona attributes, content and context; unknown placeholders render empty. Substituted
// text is never rescanned, so a placeholder inside user content stays literal.
func FormatPrompt(persona *store.Persona, content, context string) string {
	values := map[string]string{
		"content":            content,
		"context":            context,
		"name":               persona.Name,
		"description":        persona.Description,
		"expertise":          persona.Expertise,
		"personality_traits": persona.PersonalityTraits,
		"interaction_style":  persona.InteractionStyle,
		"helpfulness_level":  strconv.Itoa(int(persona.HelpfulnessLevel)),
		"strictness_level":   strconv.Itoa(int(persona.StrictnessLevel)),
		"verbosity_level":    strconv.Itoa(int(persona.VerbosityLevel)),
	}
	template := persona.PromptTemplate
	if template == "" {
		template = defaultTemplate
	}
	return fasttemplate.ExecuteFuncString(template, "{{", "}}", func(w io.Writer, tag string) (int, error) {
		return io.WriteString(w, values[strings.TrimSpace(tag)])
	})
}

const defaultTemplate = "You are {{name}}. {{description}}\n\n{{context}}\n\n{{content}}"

// Event framings. Each renders the {{content}} value handed to the persona template.

func answerContent(persona *store.Persona, question *store.Question) string {
	return fmt.Sprintf("%s\n\n%s\n\nAs %s, write an answer to this question.", question.Title, question.Body, persona.Name)
}

func answerFollowUpContent(persona *store.Persona, answer *store.Comment) string {
	return fmt.Sprintf("User's answer: %s\n\nAs %s, continue the discussion by providing additional insights, clarifications, or a different perspective on this answer.",
		answer.Body, persona.Name)
}

func replyContent(persona *store.Persona, parent, reply *store.Comment) string {
	return fmt.Sprintf("Original comment: %s\n\nUser's reply: %s\n\nAs %s, continue the discussion with relevant information, insights, or questions.",
		parent.Body, reply.Body, persona.Name)
}

func questionVoteContent(persona *store.Persona, question *store.Question, direction int32, score int) string {
	if direction > 0 {
		return fmt.Sprintf("The following question received an upvote (score: %d):\n\n%s\n\n%s\n\nAs %s, provide an insightful answer to this question.",
			score, question.Title, question.Body, persona.Name)
	}
	return fmt.Sprintf("The following question received a downvote (score: %d):\n\n%s\n\n%s\n\nAs %s, help improve this question by answering what might be unclear or providing a better approach.",
		score, question.Title, question.Body, persona.Name)
}

func commentVoteContent(persona *store.Persona, comment *store.Comment, direction int32, score int) string {
	if direction > 0 {
		return fmt.Sprintf("The following comment received an upvote and is well-received (score: %d):\n%s\n\nAs %s, add to this well-received comment with additional insights or support.",
			score, comment.Body, persona.Name)
	}
	return fmt.Sprintf("The following comment received a downvote and is controversial (score: %d):\n%s\n\nAs %s, provide a balanced perspective or clarify potential misconceptions in this comment.",
		score, comment.Body, persona.Name)
}
