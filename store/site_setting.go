package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	SiteSettingAutoPopulateEnabled       = "ai_auto_populate_enabled"
	SiteSettingAutoPopulateMaxComments   = "ai_auto_populate_max_comments"
	SiteSettingAutoPopulatePersonalities = "ai_auto_populate_personalities"
	SiteSettingSchemaVersion             = "schema_version"
)

type SiteSetting struct {
	Key         string
	Value       string
	Description string
}

type FindSiteSetting struct {
	Key *string
}

type DeleteSiteSetting struct {
	Key string
}

// DefaultSiteSettings are written by InitSiteSettings when absent.
var DefaultSiteSettings = []*SiteSetting{
	{Key: SiteSettingAutoPopulateEnabled, Value: "false", Description: "Automatically populate new questions with AI answers, votes and replies"},
	{Key: SiteSettingAutoPopulateMaxComments, Value: "150", Description: "Maximum number of comments auto-populate may bring a thread to"},
	{Key: SiteSettingAutoPopulatePersonalities, Value: "7", Description: "Number of AI personas involved in auto-populating a thread"},
}

// ParseSettingValue coerces a raw setting: all digits become int, "true"/"false" become bool,
// anything else stays a string.
func ParseSettingValue(raw string) any {
	if raw != "" && strings.Trim(raw, "0123456789") == "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

func (s *Store) UpsertSiteSetting(ctx context.Context, upsert *SiteSetting) (*SiteSetting, error) {
	setting, err := s.driver.UpsertSiteSetting(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.siteSettingCache.Set(ctx, setting.Key, setting.Value)
	return setting, nil
}

func (s *Store) ListSiteSettings(ctx context.Context, find *FindSiteSetting) ([]*SiteSetting, error) {
	list, err := s.driver.ListSiteSettings(ctx, find)
	if err != nil {
		return nil, err
	}
	for _, setting := range list {
		s.siteSettingCache.Set(ctx, setting.Key, setting.Value)
	}
	return list, nil
}

func (s *Store) DeleteSiteSetting(ctx context.Context, delete *DeleteSiteSetting) error {
	if err := s.driver.DeleteSiteSetting(ctx, delete); err != nil {
		return err
	}
	s.siteSettingCache.Delete(ctx, delete.Key)
	return nil
}

// GetSiteSetting returns the coerced value of key, or def when the key is not set.
func (s *Store) GetSiteSetting(ctx context.Context, key string, def any) (any, error) {
	raw, ok, err := s.getRawSiteSetting(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return ParseSettingValue(raw), nil
}

// GetSiteSettingBool returns the setting as a bool. Values that do not coerce to bool yield def.
func (s *Store) GetSiteSettingBool(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.GetSiteSetting(ctx, key, def)
	if err != nil {
		return def, err
	}
	b, ok := v.(bool)
	if !ok {
		return def, nil
	}
	return b, nil
}

// GetSiteSettingInt returns the setting as an int. Values that do not coerce to int yield def.
func (s *Store) GetSiteSettingInt(ctx context.Context, key string, def int) (int, error) {
	v, err := s.GetSiteSetting(ctx, key, def)
	if err != nil {
		return def, err
	}
	i, ok := v.(int)
	if !ok {
		return def, nil
	}
	return i, nil
}

func (s *Store) getRawSiteSetting(ctx context.Context, key string) (string, bool, error) {
	var fetchErr error
	value, found := s.siteSettingCache.Get(ctx, key, func(ctx context.Context, key string) (any, error) {
		list, err := s.driver.ListSiteSettings(ctx, &FindSiteSetting{Key: &key})
		if err != nil {
			fetchErr = errors.Wrapf(err, "failed to get site setting %s", key)
			return nil, fetchErr
		}
		if len(list) == 0 {
			return nil, ErrNotFound
		}
		return list[0].Value, nil
	})
	if fetchErr != nil {
		return "", false, fetchErr
	}
	if !found {
		return "", false, nil
	}
	raw, ok := value.(string)
	if !ok {
		return "", false, errors.Errorf("site setting %s has unexpected cached type %T", key, value)
	}
	return raw, true, nil
}

// InitSiteSettings writes every default setting that does not exist yet.
func (s *Store) InitSiteSettings(ctx context.Context) error {
	for _, def := range DefaultSiteSettings {
		key := def.Key
		existing, err := s.driver.ListSiteSettings(ctx, &FindSiteSetting{Key: &key})
		if err != nil {
			return errors.Wrapf(err, "failed to read site setting %s", key)
		}
		if len(existing) > 0 {
			continue
		}
		if _, err := s.UpsertSiteSetting(ctx, def); err != nil {
			return errors.Wrapf(err, "failed to init site setting %s", key)
		}
	}
	return nil
}
