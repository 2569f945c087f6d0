package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// RunInTx calls fn with a driver bound to a new transaction.
	// Calls made on an already transactional driver join the outer transaction.
	RunInTx(ctx context.Context, fn func(Driver) error) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	// EnsureUser inserts create unless a user with the same username exists,
	// and returns the stored row either way.
	EnsureUser(ctx context.Context, create *User) (*User, error)
	UpdateUser(ctx context.Context, update *UpdateUser) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)
	IncrementReputation(ctx context.Context, userID int32, delta int32) error

	// Persona model related methods.
	CreatePersona(ctx context.Context, create *Persona) (*Persona, error)
	UpsertPersona(ctx context.Context, upsert *Persona) (*Persona, error)
	ListPersonas(ctx context.Context, find *FindPersona) ([]*Persona, error)
	UpdatePersona(ctx context.Context, update *UpdatePersona) (*Persona, error)
	DeletePersona(ctx context.Context, delete *DeletePersona) error

	// Question model related methods.
	CreateQuestion(ctx context.Context, create *Question) (*Question, error)
	ListQuestions(ctx context.Context, find *FindQuestion) ([]*Question, error)
	UpdateQuestion(ctx context.Context, update *UpdateQuestion) (*Question, error)

	// Tag model related methods.
	UpsertTag(ctx context.Context, name string) (*Tag, error)
	AttachTag(ctx context.Context, questionID, tagID int32) error
	ListTags(ctx context.Context, find *FindTag) ([]*Tag, error)

	// Comment model related methods.
	CreateComment(ctx context.Context, create *Comment) (*Comment, error)
	ListComments(ctx context.Context, find *FindComment) ([]*Comment, error)
	CountComments(ctx context.Context, find *FindComment) (int, error)
	UpdateComment(ctx context.Context, update *UpdateComment) (*Comment, error)

	// Vote model related methods.
	UpsertVote(ctx context.Context, upsert *Vote) (*Vote, error)
	ListVotes(ctx context.Context, find *FindVote) ([]*Vote, error)
	SumVotes(ctx context.Context, targetType VoteTargetType, targetID int32) (int, error)
	DeleteVote(ctx context.Context, delete *DeleteVote) error

	// SiteSetting model related methods.
	UpsertSiteSetting(ctx context.Context, upsert *SiteSetting) (*SiteSetting, error)
	ListSiteSettings(ctx context.Context, find *FindSiteSetting) ([]*SiteSetting, error)
	DeleteSiteSetting(ctx context.Context, delete *DeleteSiteSetting) error
}
