package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/store"
)

const personaColumns = `id, name, description, expertise, personality_traits, interaction_style, helpfulness_level, strictness_level, verbosity_level, activity_frequency, prompt_template, avatar_url, is_active, model, api_key, base_url, created_ts, updated_ts`

var personaInsertFields = []string{
	"name", "description", "expertise", "personality_traits", "interaction_style",
	"helpfulness_level", "strictness_level", "verbosity_level", "activity_frequency",
	"prompt_template", "avatar_url", "is_active", "model", "api_key", "base_url",
}

func personaInsertArgs(p *store.Persona) []any {
	return []any{
		p.Name, p.Description, p.Expertise, p.PersonalityTraits, p.InteractionStyle,
		p.HelpfulnessLevel, p.StrictnessLevel, p.VerbosityLevel, p.ActivityFrequency,
		p.PromptTemplate, p.AvatarURL, p.IsActive, p.Model, p.APIKey, p.BaseURL,
	}
}

func scanPersona(scanner interface{ Scan(...any) error }) (*store.Persona, error) {
	p := &store.Persona{}
	if err := scanner.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Expertise,
		&p.PersonalityTraits,
		&p.InteractionStyle,
		&p.HelpfulnessLevel,
		&p.StrictnessLevel,
		&p.VerbosityLevel,
		&p.ActivityFrequency,
		&p.PromptTemplate,
		&p.AvatarURL,
		&p.IsActive,
		&p.Model,
		&p.APIKey,
		&p.BaseURL,
		&p.CreatedTs,
		&p.UpdatedTs,
	); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *DB) CreatePersona(ctx context.Context, create *store.Persona) (*store.Persona, error) {
	args := personaInsertArgs(create)
	stmt := "INSERT INTO persona (" + strings.Join(personaInsertFields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING " + personaColumns
	persona, err := scanPersona(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create persona")
	}
	return persona, nil
}

func (d *DB) UpsertPersona(ctx context.Context, upsert *store.Persona) (*store.Persona, error) {
	args := personaInsertArgs(upsert)
	updates := make([]string, 0, len(personaInsertFields))
	for _, field := range personaInsertFields[1:] {
		updates = append(updates, field+" = excluded."+field)
	}
	updates = append(updates, "updated_ts = EXTRACT(EPOCH FROM NOW())::BIGINT")
	stmt := "INSERT INTO persona (" + strings.Join(personaInsertFields, ", ") + ") VALUES (" + placeholders(len(args)) + ")" +
		" ON CONFLICT(name) DO UPDATE SET " + strings.Join(updates, ", ") +
		" RETURNING " + personaColumns
	persona, err := scanPersona(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert persona")
	}
	return persona, nil
}

func (d *DB) ListPersonas(ctx context.Context, find *store.FindPersona) ([]*store.Persona, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Name; v != nil {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.IsActive; v != nil {
		where, args = append(where, "is_active = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := "SELECT " + personaColumns + " FROM persona WHERE " + strings.Join(where, " AND ") + " ORDER BY id ASC"
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list personas")
	}
	defer rows.Close()

	list := make([]*store.Persona, 0)
	for rows.Next() {
		persona, err := scanPersona(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan persona")
		}
		list = append(list, persona)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate personas")
	}
	return list, nil
}

func (d *DB) UpdatePersona(ctx context.Context, update *store.UpdatePersona) (*store.Persona, error) {
	set, args := []string{}, []any{}
	add := func(column string, value any) {
		set, args = append(set, column+" = "+placeholder(len(args)+1)), append(args, value)
	}

	if v := update.Description; v != nil {
		add("description", *v)
	}
	if v := update.Expertise; v != nil {
		add("expertise", *v)
	}
	if v := update.PersonalityTraits; v != nil {
		add("personality_traits", *v)
	}
	if v := update.InteractionStyle; v != nil {
		add("interaction_style", *v)
	}
	if v := update.HelpfulnessLevel; v != nil {
		add("helpfulness_level", *v)
	}
	if v := update.StrictnessLevel; v != nil {
		add("strictness_level", *v)
	}
	if v := update.VerbosityLevel; v != nil {
		add("verbosity_level", *v)
	}
	if v := update.ActivityFrequency; v != nil {
		add("activity_frequency", *v)
	}
	if v := update.PromptTemplate; v != nil {
		add("prompt_template", *v)
	}
	if v := update.IsActive; v != nil {
		add("is_active", *v)
	}
	if v := update.Model; v != nil {
		add("model", *v)
	}
	if v := update.APIKey; v != nil {
		add("api_key", *v)
	}
	if v := update.BaseURL; v != nil {
		add("base_url", *v)
	}
	if v := update.UpdatedTs; v != nil {
		add("updated_ts", *v)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := "UPDATE persona SET " + strings.Join(set, ", ") + " WHERE id = " + placeholder(len(args)) + " RETURNING " + personaColumns
	persona, err := scanPersona(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(store.ErrNotFound, "persona %d", update.ID)
		}
		return nil, errors.Wrap(err, "failed to update persona")
	}
	return persona, nil
}

func (d *DB) DeletePersona(ctx context.Context, delete *store.DeletePersona) error {
	result, err := d.q.ExecContext(ctx, "DELETE FROM persona WHERE id = "+placeholder(1), delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete persona")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Wrapf(store.ErrNotFound, "persona %d", delete.ID)
	}
	return nil
}
