package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/store"
)

const commentColumns = `id, uid, question_id, parent_id, creator_id, body, is_deleted, is_accepted, created_ts, updated_ts`

func scanComment(scanner interface{ Scan(...any) error }) (*store.Comment, error) {
	c := &store.Comment{}
	var parentID sql.NullInt32
	if err := scanner.Scan(&c.ID, &c.UID, &c.QuestionID, &parentID, &c.CreatorID, &c.Body, &c.IsDeleted, &c.IsAccepted, &c.CreatedTs, &c.UpdatedTs); err != nil {
		return nil, err
	}
	c.ParentID = nullInt32Ptr(parentID)
	return c, nil
}

func (d *DB) CreateComment(ctx context.Context, create *store.Comment) (*store.Comment, error) {
	fields := []string{"uid", "question_id", "parent_id", "creator_id", "body"}
	args := []any{create.UID, create.QuestionID, create.ParentID, create.CreatorID, create.Body}
	stmt := "INSERT INTO comment (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING " + commentColumns
	comment, err := scanComment(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create comment")
	}
	return comment, nil
}

func buildCommentWhere(find *store.FindComment) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.QuestionID; v != nil {
		where, args = append(where, "question_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ParentID; v != nil {
		where, args = append(where, "parent_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.TopLevelOnly {
		where = append(where, "parent_id IS NULL")
	}
	if !find.IncludeDeleted {
		where = append(where, "is_deleted = FALSE")
	}
	return where, args
}

func (d *DB) ListComments(ctx context.Context, find *store.FindComment) ([]*store.Comment, error) {
	where, args := buildCommentWhere(find)
	query := "SELECT " + commentColumns + " FROM comment WHERE " + strings.Join(where, " AND ") + " ORDER BY created_ts ASC, id ASC"
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list comments")
	}
	defer rows.Close()

	list := make([]*store.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan comment")
		}
		list = append(list, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate comments")
	}
	return list, nil
}

func (d *DB) CountComments(ctx context.Context, find *store.FindComment) (int, error) {
	where, args := buildCommentWhere(find)
	var count int
	if err := d.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM comment WHERE "+strings.Join(where, " AND "), args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count comments")
	}
	return count, nil
}

func (d *DB) UpdateComment(ctx context.Context, update *store.UpdateComment) (*store.Comment, error) {
	set, args := []string{}, []any{}
	if v := update.Body; v != nil {
		set, args = append(set, "body = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.IsDeleted; v != nil {
		set, args = append(set, "is_deleted = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.IsAccepted; v != nil {
		set, args = append(set, "is_accepted = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := "UPDATE comment SET " + strings.Join(set, ", ") + " WHERE id = " + placeholder(len(args)) + " RETURNING " + commentColumns
	comment, err := scanComment(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(store.ErrNotFound, "comment %d", update.ID)
		}
		return nil, errors.Wrap(err, "failed to update comment")
	}
	return comment, nil
}
