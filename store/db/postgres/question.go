package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/store"
)

const questionColumns = `id, title, body, creator_id, is_closed, close_reason, views, created_ts, updated_ts`

func scanQuestion(scanner interface{ Scan(...any) error }) (*store.Question, error) {
	q := &store.Question{}
	if err := scanner.Scan(&q.ID, &q.Title, &q.Body, &q.CreatorID, &q.IsClosed, &q.CloseReason, &q.Views, &q.CreatedTs, &q.UpdatedTs); err != nil {
		return nil, err
	}
	return q, nil
}

func (d *DB) CreateQuestion(ctx context.Context, create *store.Question) (*store.Question, error) {
	fields := []string{"title", "body", "creator_id", "is_closed", "close_reason"}
	args := []any{create.Title, create.Body, create.CreatorID, create.IsClosed, create.CloseReason}
	stmt := "INSERT INTO question (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING " + questionColumns
	question, err := scanQuestion(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create question")
	}
	return question, nil
}

func (d *DB) ListQuestions(ctx context.Context, find *store.FindQuestion) ([]*store.Question, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.IsClosed; v != nil {
		where, args = append(where, "is_closed = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := "SELECT " + questionColumns + " FROM question WHERE " + strings.Join(where, " AND ") + " ORDER BY created_ts DESC, id DESC"
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list questions")
	}
	defer rows.Close()

	list := make([]*store.Question, 0)
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan question")
		}
		list = append(list, question)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate questions")
	}
	return list, nil
}

func (d *DB) UpdateQuestion(ctx context.Context, update *store.UpdateQuestion) (*store.Question, error) {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Body; v != nil {
		set, args = append(set, "body = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.IsClosed; v != nil {
		set, args = append(set, "is_closed = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.CloseReason; v != nil {
		set, args = append(set, "close_reason = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := "UPDATE question SET " + strings.Join(set, ", ") + " WHERE id = " + placeholder(len(args)) + " RETURNING " + questionColumns
	question, err := scanQuestion(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(store.ErrNotFound, "question %d", update.ID)
		}
		return nil, errors.Wrap(err, "failed to update question")
	}
	return question, nil
}

func (d *DB) UpsertTag(ctx context.Context, name string) (*store.Tag, error) {
	stmt := "INSERT INTO tag (name) VALUES (" + placeholder(1) + ") ON CONFLICT(name) DO UPDATE SET name = excluded.name RETURNING id, name"
	tag := &store.Tag{}
	if err := d.q.QueryRowContext(ctx, stmt, name).Scan(&tag.ID, &tag.Name); err != nil {
		return nil, errors.Wrap(err, "failed to upsert tag")
	}
	return tag, nil
}

func (d *DB) AttachTag(ctx context.Context, questionID, tagID int32) error {
	stmt := "INSERT INTO question_tag (question_id, tag_id) VALUES (" + placeholders(2) + ") ON CONFLICT DO NOTHING"
	if _, err := d.q.ExecContext(ctx, stmt, questionID, tagID); err != nil {
		return errors.Wrap(err, "failed to attach tag")
	}
	return nil
}

func (d *DB) ListTags(ctx context.Context, find *store.FindTag) ([]*store.Tag, error) {
	where, args := []string{"1 = 1"}, []any{}
	from := "tag"
	if v := find.QuestionID; v != nil {
		from = "tag JOIN question_tag ON question_tag.tag_id = tag.id"
		where, args = append(where, "question_tag.question_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Name; v != nil {
		where, args = append(where, "tag.name = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := "SELECT tag.id, tag.name FROM " + from + " WHERE " + strings.Join(where, " AND ") + " ORDER BY tag.name ASC"
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tags")
	}
	defer rows.Close()

	list := make([]*store.Tag, 0)
	for rows.Next() {
		tag := &store.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, errors.Wrap(err, "failed to scan tag")
		}
		list = append(list, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tags")
	}
	return list, nil
}
