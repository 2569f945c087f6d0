package store

import (
	"context"
	"strings"
)

type Tag struct {
	ID   int32
	Name string
}

type FindTag struct {
	Name       *string
	QuestionID *int32
}

func (s *Store) ListTags(ctx context.Context, find *FindTag) ([]*Tag, error) {
	return s.driver.ListTags(ctx, find)
}

// SetQuestionTags attaches the given tag names to a question, creating missing tags.
// Names are trimmed and lowercased; blanks and duplicates are skipped.
func (s *Store) SetQuestionTags(ctx context.Context, questionID int32, names []string) error {
	seen := map[string]bool{}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tag, err := s.driver.UpsertTag(ctx, name)
		if err != nil {
			return err
		}
		if err := s.driver.AttachTag(ctx, questionID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}
