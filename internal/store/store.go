package store

import (
	"context"

	"github.com/halcyonlab/usergate/internal/domain/entity"
)

// Options is the connection configuration record shared by all adapters.
// Fields a given backend does not recognize are ignored by that backend.
type Options struct {
	Adapter     string
	Host        string
	Port        int
	User        string
	Pass        string
	Engine      string // relational only: postgres or sqlite
	DBName      string
	StoragePath string // embedded backends; empty means in-memory
	Debug       bool
	ExitOnFail  bool
}

// CreateFields carries the required signup attributes. All fields must be
// non-empty after trimming; the adapter validates before touching the backend.
type CreateFields struct {
	Firstname string
	Lastname  string
	Username  string
	Email     string
	Password  string // already hashed by the caller
}

// UpdatePatch carries the mutable subset of a user. Nil pointers are left
// untouched; id and password can never be changed through an update.
type UpdatePatch struct {
	Firstname *string
	Lastname  *string
	Username  *string
	Email     *string
}

// SearchResult is the transient projection returned by list and search
// operations. Total counts all matches ignoring pagination; Length counts the
// users actually returned.
type SearchResult struct {
	Total  int
	Length int
	Users  []*entity.User
}

// ListFilter narrows GetUsers by case-insensitive partial name match,
// AND-combined when both are set.
type ListFilter struct {
	Firstname string
	Lastname  string
	Page      int
	Limit     int
	Sort      []SortKey
}

// SearchQuery is the normalized form of a user search. Fields lists the
// columns the term is matched against, OR-combined; empty means all of them.
type SearchQuery struct {
	Term   string
	Fields []Field
	Page   int
	Limit  int
	Sort   []SortKey
}

// Adapter is the capability contract every store backend must satisfy.
// Find operations return (nil, nil) when no user matches; absence is not an
// error. CreateUser must enforce email/username uniqueness atomically with the
// insert, not merely by a prior lookup.
type Adapter interface {
	Connect(ctx context.Context, opts Options) error
	Disconnect(ctx context.Context) error

	CreateUser(ctx context.Context, fields CreateFields) (*entity.User, error)
	GetUsers(ctx context.Context, filter ListFilter) (*SearchResult, error)
	SearchUsers(ctx context.Context, q SearchQuery) (*SearchResult, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByID(ctx context.Context, id string) (*entity.User, error)
	UpdateUser(ctx context.Context, id string, patch UpdatePatch) (*entity.User, error)
	DeleteUser(ctx context.Context, id string) error
}
