package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/store"
)

const voteColumns = `id, user_id, target_type, target_id, vote_type, created_ts, updated_ts`

func scanVote(scanner interface{ Scan(...any) error }) (*store.Vote, error) {
	v := &store.Vote{}
	var targetType string
	if err := scanner.Scan(&v.ID, &v.UserID, &targetType, &v.TargetID, &v.VoteType, &v.CreatedTs, &v.UpdatedTs); err != nil {
		return nil, err
	}
	v.TargetType = store.VoteTargetType(targetType)
	return v, nil
}

func (d *DB) UpsertVote(ctx context.Context, upsert *store.Vote) (*store.Vote, error) {
	fields := []string{"user_id", "target_type", "target_id", "vote_type", "created_ts", "updated_ts"}
	args := []any{upsert.UserID, string(upsert.TargetType), upsert.TargetID, upsert.VoteType, upsert.CreatedTs, upsert.UpdatedTs}
	stmt := "INSERT INTO vote (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ")" +
		" ON CONFLICT(user_id, target_type, target_id) DO UPDATE SET vote_type = excluded.vote_type, updated_ts = excluded.updated_ts" +
		" RETURNING " + voteColumns
	vote, err := scanVote(d.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert vote")
	}
	return vote, nil
}

func (d *DB) ListVotes(ctx context.Context, find *store.FindVote) ([]*store.Vote, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TargetType; v != nil {
		where, args = append(where, "target_type = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := find.TargetID; v != nil {
		where, args = append(where, "target_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := "SELECT " + voteColumns + " FROM vote WHERE " + strings.Join(where, " AND ") + " ORDER BY id ASC"
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list votes")
	}
	defer rows.Close()

	list := make([]*store.Vote, 0)
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vote")
		}
		list = append(list, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate votes")
	}
	return list, nil
}

func (d *DB) SumVotes(ctx context.Context, targetType store.VoteTargetType, targetID int32) (int, error) {
	var sum int
	query := "SELECT COALESCE(SUM(vote_type), 0) FROM vote WHERE target_type = " + placeholder(1) + " AND target_id = " + placeholder(2)
	if err := d.q.QueryRowContext(ctx, query, string(targetType), targetID).Scan(&sum); err != nil {
		return 0, errors.Wrap(err, "failed to sum votes")
	}
	return sum, nil
}

func (d *DB) DeleteVote(ctx context.Context, delete *store.DeleteVote) error {
	if _, err := d.q.ExecContext(ctx, "DELETE FROM vote WHERE id = "+placeholder(1), delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete vote")
	}
	return nil
}
