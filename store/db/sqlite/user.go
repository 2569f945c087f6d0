package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/store"
)

const userColumns = `id, username, email, password_hash, reputation, is_admin, is_ai, persona_id, created_ts, updated_ts`

func scanUser(scanner interface{ Scan(...any) error }) (*store.User, error) {
	user := &store.User{}
	var personaID sql.NullInt32
	if err := scanner.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Reputation,
		&user.IsAdmin,
		&user.IsAI,
		&personaID,
		&user.CreatedTs,
		&user.UpdatedTs,
	); err != nil {
		return nil, err
	}
	user.PersonaID = nullInt32Ptr(personaID)
	return user, nil
}

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	fields := []string{"username", "email", "password_hash", "is_admin", "is_ai", "persona_id"}
	args := []any{create.Username, create.Email, create.PasswordHash, create.IsAdmin, create.IsAI, create.PersonaID}
	stmt := "INSERT INTO user (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING " + userColumns
	user, err := scanUser(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return user, nil
}

func (d *DB) EnsureUser(ctx context.Context, create *store.User) (*store.User, error) {
	fields := []string{"username", "email", "password_hash", "is_admin", "is_ai", "persona_id"}
	args := []any{create.Username, create.Email, create.PasswordHash, create.IsAdmin, create.IsAI, create.PersonaID}
	stmt := "INSERT INTO user (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") ON CONFLICT DO NOTHING"
	if _, err := d.q.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to ensure user")
	}

	list, err := d.ListUsers(ctx, &store.FindUser{Username: &create.Username})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("user %q vanished after insert", create.Username)
	}
	return list[0], nil
}

func (d *DB) UpdateUser(ctx context.Context, update *store.UpdateUser) (*store.User, error) {
	set, args := []string{}, []any{}
	if v := update.Email; v != nil {
		set, args = append(set, "email = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.PasswordHash; v != nil {
		set, args = append(set, "password_hash = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.PersonaID; v != nil {
		set, args = append(set, "persona_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := "UPDATE user SET " + strings.Join(set, ", ") + " WHERE id = " + placeholder(len(args)) + " RETURNING " + userColumns
	user, err := scanUser(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(store.ErrNotFound, "user %d", update.ID)
		}
		return nil, errors.Wrap(err, "failed to update user")
	}
	return user, nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Username; v != nil {
		where, args = append(where, "username = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.PersonaID; v != nil {
		where, args = append(where, "persona_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.IsAI; v != nil {
		where, args = append(where, "is_ai = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := "SELECT " + userColumns + " FROM user WHERE " + strings.Join(where, " AND ") + " ORDER BY id ASC"
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	list := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user")
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate users")
	}
	return list, nil
}

func (d *DB) IncrementReputation(ctx context.Context, userID int32, delta int32) error {
	stmt := "UPDATE user SET reputation = reputation + " + placeholder(1) + " WHERE id = " + placeholder(2)
	result, err := d.q.ExecContext(ctx, stmt, delta, userID)
	if err != nil {
		return errors.Wrap(err, "failed to update reputation")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Wrapf(store.ErrNotFound, "user %d", userID)
	}
	return nil
}
