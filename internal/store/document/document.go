// Package document implements the store adapter contract on badger, an
// embedded document store. Users are JSON documents; email and username
// uniqueness is enforced with index keys written in the same serializable
// transaction as the document itself.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/halcyonlab/usergate/internal/domain/entity"
	"github.com/halcyonlab/usergate/internal/store"
)

const (
	userPrefix     = "user/"
	emailPrefix    = "idx/email/"
	usernamePrefix = "idx/username/"
)

type userDoc struct {
	ID           string    `json:"id"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	SignupDate   time.Time `json:"signupDate"`
}

func fromEntity(u *entity.User) userDoc {
	return userDoc(*u)
}

func (d userDoc) toEntity() *entity.User {
	u := entity.User(d)
	return &u
}

// Adapter is the badger-backed document store.
type Adapter struct {
	db *badger.DB
}

func New() store.Adapter { return &Adapter{} }

// Connect opens the badger database at opts.StoragePath, or an in-memory
// instance when the path is empty. Host/port/user/pass/engine/dbName are not
// meaningful for an embedded store and are ignored.
func (a *Adapter) Connect(ctx context.Context, opts store.Options) error {
	if a.db != nil {
		return store.ErrAlreadyConnected
	}
	var bopts badger.Options
	if opts.StoragePath == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.StoragePath)
	}
	if !opts.Debug {
		bopts = bopts.WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.db == nil {
		return store.ErrNotConnected
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func emailKey(email string) []byte {
	return []byte(emailPrefix + strings.ToLower(email))
}

func usernameKey(username string) []byte {
	return []byte(usernamePrefix + strings.ToLower(username))
}

func userKey(id string) []byte {
	return []byte(userPrefix + id)
}

// CreateUser validates the fields and inserts the document plus both index
// keys in one transaction. Badger transactions are serializable, so two
// concurrent creates with the same email or username cannot both commit; the
// loser either sees the index key or gets a conflict and retries into it.
func (a *Adapter) CreateUser(ctx context.Context, fields store.CreateFields) (*entity.User, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	if err := store.ValidateCreate(&fields); err != nil {
		return nil, err
	}

	u := &entity.User{
		ID:           uuid.NewString(),
		Firstname:    fields.Firstname,
		Lastname:     fields.Lastname,
		Username:     fields.Username,
		Email:        fields.Email,
		PasswordHash: fields.Password,
		SignupDate:   time.Now().UTC(),
	}
	doc, err := json.Marshal(fromEntity(u))
	if err != nil {
		return nil, err
	}

	insert := func(txn *badger.Txn) error {
		if err := keyAbsent(txn, emailKey(u.Email)); err != nil {
			return wrapExists(err, "email")
		}
		if err := keyAbsent(txn, usernameKey(u.Username)); err != nil {
			return wrapExists(err, "username")
		}
		if err := txn.Set(userKey(u.ID), doc); err != nil {
			return err
		}
		if err := txn.Set(emailKey(u.Email), []byte(u.ID)); err != nil {
			return err
		}
		return txn.Set(usernameKey(u.Username), []byte(u.ID))
	}

	for {
		err := a.db.Update(insert)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	}
}

var errKeyPresent = errors.New("key present")

func keyAbsent(txn *badger.Txn, key []byte) error {
	_, err := txn.Get(key)
	if err == nil {
		return errKeyPresent
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func wrapExists(err error, field string) error {
	if errors.Is(err, errKeyPresent) {
		return &store.UserExistsError{Field: field}
	}
	return err
}

func (a *Adapter) GetUsers(ctx context.Context, filter store.ListFilter) (*store.SearchResult, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	users, err := a.loadAll()
	if err != nil {
		return nil, err
	}

	matched := users[:0:0]
	first := strings.ToLower(strings.TrimSpace(filter.Firstname))
	last := strings.ToLower(strings.TrimSpace(filter.Lastname))
	for _, u := range users {
		if first != "" && !strings.Contains(strings.ToLower(u.Firstname), first) {
			continue
		}
		if last != "" && !strings.Contains(strings.ToLower(u.Lastname), last) {
			continue
		}
		matched = append(matched, u)
	}

	keys := filter.Sort
	if len(keys) == 0 {
		keys = store.DefaultSort
	}
	sort.SliceStable(matched, func(i, j int) bool { return store.Less(matched[i], matched[j], keys) })

	page, limit := store.NormalizePage(filter.Page, filter.Limit, false)
	return store.Paginate(matched, page, limit), nil
}

func (a *Adapter) SearchUsers(ctx context.Context, q store.SearchQuery) (*store.SearchResult, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return nil, store.ErrMissingSearchTerm
	}
	users, err := a.loadAll()
	if err != nil {
		return nil, err
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = store.SearchFields
	}
	matched := users[:0:0]
	for _, u := range users {
		if store.MatchesTerm(u, term, fields) {
			matched = append(matched, u)
		}
	}

	keys := q.Sort
	if len(keys) == 0 {
		keys = store.DefaultSort
	}
	sort.SliceStable(matched, func(i, j int) bool { return store.Less(matched[i], matched[j], keys) })

	page, limit := store.NormalizePage(q.Page, q.Limit, true)
	return store.Paginate(matched, page, limit), nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return a.findByIndex(emailKey(email))
}

func (a *Adapter) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return a.findByIndex(usernameKey(username))
}

func (a *Adapter) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	var u *entity.User
	err := a.db.View(func(txn *badger.Txn) error {
		got, err := getUser(txn, id)
		if err != nil {
			return err
		}
		u = got
		return nil
	})
	return u, err
}

func (a *Adapter) findByIndex(key []byte) (*entity.User, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	var u *entity.User
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		got, err := getUser(txn, string(id))
		if err != nil {
			return err
		}
		u = got
		return nil
	})
	return u, err
}

func getUser(txn *badger.Txn, id string) (*entity.User, error) {
	item, err := txn.Get(userKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc userDoc
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &doc) }); err != nil {
		return nil, err
	}
	return doc.toEntity(), nil
}

// UpdateUser rewrites the document with the patched fields, moving index keys
// when email or username change. id, password hash, and signup date are never
// touched.
func (a *Adapter) UpdateUser(ctx context.Context, id string, patch store.UpdatePatch) (*entity.User, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	var updated *entity.User
	apply := func(txn *badger.Txn) error {
		u, err := getUser(txn, id)
		if err != nil {
			return err
		}
		if u == nil {
			return store.ErrNotFound
		}
		if patch.Firstname != nil {
			u.Firstname = *patch.Firstname
		}
		if patch.Lastname != nil {
			u.Lastname = *patch.Lastname
		}
		if patch.Email != nil && !strings.EqualFold(*patch.Email, u.Email) {
			if err := keyAbsent(txn, emailKey(*patch.Email)); err != nil {
				return wrapExists(err, "email")
			}
			if err := txn.Delete(emailKey(u.Email)); err != nil {
				return err
			}
			u.Email = *patch.Email
			if err := txn.Set(emailKey(u.Email), []byte(u.ID)); err != nil {
				return err
			}
		}
		if patch.Username != nil && !strings.EqualFold(*patch.Username, u.Username) {
			if err := keyAbsent(txn, usernameKey(*patch.Username)); err != nil {
				return wrapExists(err, "username")
			}
			if err := txn.Delete(usernameKey(u.Username)); err != nil {
				return err
			}
			u.Username = *patch.Username
			if err := txn.Set(usernameKey(u.Username), []byte(u.ID)); err != nil {
				return err
			}
		}
		doc, err := json.Marshal(fromEntity(u))
		if err != nil {
			return err
		}
		if err := txn.Set(userKey(u.ID), doc); err != nil {
			return err
		}
		updated = u
		return nil
	}

	for {
		err := a.db.Update(apply)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
}

// DeleteUser removes the document and its index keys. A missing id is not an
// error; callers that must surface "not found" check existence first.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	if a.db == nil {
		return store.ErrNotConnected
	}
	remove := func(txn *badger.Txn) error {
		u, err := getUser(txn, id)
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}
		if err := txn.Delete(emailKey(u.Email)); err != nil {
			return err
		}
		if err := txn.Delete(usernameKey(u.Username)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	}
	for {
		err := a.db.Update(remove)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

func (a *Adapter) loadAll() ([]*entity.User, error) {
	var users []*entity.User
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(userPrefix), PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var doc userDoc
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &doc) }); err != nil {
				return err
			}
			users = append(users, doc.toEntity())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

var _ store.Adapter = (*Adapter)(nil)
