package store

import (
	"context"
	"strconv"
)

type User struct {
	ID int32

	Username     string
	Email        string
	PasswordHash string
	Reputation   int32
	IsAdmin      bool
	IsAI         bool
	// PersonaID links a bot account to its persona. Nil for human users.
	PersonaID *int32

	CreatedTs int64
	UpdatedTs int64
}

type FindUser struct {
	ID        *int32
	Username  *string
	PersonaID *int32
	IsAI      *bool

	Limit *int
}

type UpdateUser struct {
	ID int32

	Email        *string
	PasswordHash *string
	PersonaID    *int32
	UpdatedTs    *int64
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	user, err := s.driver.CreateUser(ctx, create)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(ctx, userCacheKey(user.ID), user)
	return user, nil
}

// EnsureUser returns the user named create.Username, inserting create if none exists.
// Concurrent callers observe the same row.
func (s *Store) EnsureUser(ctx context.Context, create *User) (*User, error) {
	user, err := s.driver.EnsureUser(ctx, create)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(ctx, userCacheKey(user.ID), user)
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, update *UpdateUser) (*User, error) {
	user, err := s.driver.UpdateUser(ctx, update)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(ctx, userCacheKey(user.ID), user)
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	for _, user := range list {
		s.userCache.Set(ctx, userCacheKey(user.ID), user)
	}
	return list, nil
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.ID != nil {
		if cached, ok := s.userCache.Get(ctx, userCacheKey(*find.ID)); ok {
			if user, ok := cached.(*User); ok {
				return user, nil
			}
		}
	}

	list, err := s.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// IncrementReputation adds delta to the user's reputation. Inside a transaction the cached
// user is evicted after the transaction ends, so concurrent readers cannot re-cache the
// pre-commit row.
func (s *Store) IncrementReputation(ctx context.Context, userID int32, delta int32) error {
	if delta == 0 {
		return nil
	}
	if err := s.driver.IncrementReputation(ctx, userID, delta); err != nil {
		return err
	}
	s.afterTx(func() {
		s.userCache.Delete(context.WithoutCancel(ctx), userCacheKey(userID))
	})
	return nil
}

func userCacheKey(id int32) string {
	return strconv.Itoa(int(id))
}
