package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/store"
)

func (d *DB) UpsertSiteSetting(ctx context.Context, upsert *store.SiteSetting) (*store.SiteSetting, error) {
	stmt := "INSERT INTO site_setting (key, value, description) VALUES (" + placeholders(3) + ")" +
		" ON CONFLICT(key) DO UPDATE SET value = excluded.value, description = excluded.description"
	if _, err := d.q.ExecContext(ctx, stmt, upsert.Key, upsert.Value, upsert.Description); err != nil {
		return nil, errors.Wrapf(err, "failed to upsert site setting %s", upsert.Key)
	}
	return upsert, nil
}

func (d *DB) ListSiteSettings(ctx context.Context, find *store.FindSiteSetting) ([]*store.SiteSetting, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.Key; v != nil {
		where, args = append(where, "key = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := "SELECT key, value, description FROM site_setting WHERE " + strings.Join(where, " AND ") + " ORDER BY key ASC"
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list site settings")
	}
	defer rows.Close()

	list := make([]*store.SiteSetting, 0)
	for rows.Next() {
		setting := &store.SiteSetting{}
		if err := rows.Scan(&setting.Key, &setting.Value, &setting.Description); err != nil {
			return nil, errors.Wrap(err, "failed to scan site setting")
		}
		list = append(list, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate site settings")
	}
	return list, nil
}

func (d *DB) DeleteSiteSetting(ctx context.Context, delete *store.DeleteSiteSetting) error {
	if _, err := d.q.ExecContext(ctx, "DELETE FROM site_setting WHERE key = "+placeholder(1), delete.Key); err != nil {
		return errors.Wrap(err, "failed to delete site setting")
	}
	return nil
}
