// Package relational implements the store adapter contract on database/sql.
// The engine option selects the dialect: postgres through the pgx stdlib
// driver, or sqlite through modernc.org/sqlite with storagePath as the DSN.
// Uniqueness of email and username rests on the DB unique indexes, so
// concurrent duplicate creates are decided by the engine, not by lookups.
package relational

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/halcyonlab/usergate/internal/domain/entity"
	"github.com/halcyonlab/usergate/internal/store"
)

//go:embed migrations
var migrationsFS embed.FS

const userColumns = "id, firstname, lastname, username, email, password_hash, signup_date"

// Adapter is the SQL-backed relational store.
type Adapter struct {
	db *sql.DB
	d  dialect
}

func New() store.Adapter { return &Adapter{} }

// NewWithDB binds the adapter to an existing database handle. Used by tests
// to inject a mock; Connect must not be called on an adapter built this way.
func NewWithDB(db *sql.DB, engine string) (*Adapter, error) {
	d, err := dialectFor(engine)
	if err != nil {
		return nil, err
	}
	return &Adapter{db: db, d: d}, nil
}

// Connect opens the database selected by opts.Engine and applies the embedded
// schema migrations. Debug and unknown options are ignored.
func (a *Adapter) Connect(ctx context.Context, opts store.Options) error {
	if a.db != nil {
		return store.ErrAlreadyConnected
	}
	d, err := dialectFor(opts.Engine)
	if err != nil {
		return err
	}
	db, err := sql.Open(d.driverName(), d.dsn(opts))
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return err
	}
	if err := migrateUp(db, d); err != nil {
		_ = db.Close()
		return err
	}
	a.db = db
	a.d = d
	return nil
}

func migrateUp(db *sql.DB, d dialect) error {
	sub, err := fs.Sub(migrationsFS, "migrations/"+d.name())
	if err != nil {
		return err
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	driver, err := d.migrateDriver(db)
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, d.name(), driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
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
	q := a.d.rebind(`INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	_, err := a.db.ExecContext(ctx, q,
		u.ID, u.Firstname, u.Lastname, u.Username, u.Email, u.PasswordHash, u.SignupDate)
	if err != nil {
		if field, ok := a.d.uniqueField(err); ok {
			return nil, &store.UserExistsError{Field: field}
		}
		return nil, err
	}
	return u, nil
}

func (a *Adapter) GetUsers(ctx context.Context, filter store.ListFilter) (*store.SearchResult, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	var conds []string
	var args []any
	n := 0
	if s := strings.TrimSpace(filter.Firstname); s != "" {
		n++
		conds = append(conds, fmt.Sprintf("lower(firstname) LIKE '%%' || lower($%d) || '%%'", n))
		args = append(args, s)
	}
	if s := strings.TrimSpace(filter.Lastname); s != "" {
		n++
		conds = append(conds, fmt.Sprintf("lower(lastname) LIKE '%%' || lower($%d) || '%%'", n))
		args = append(args, s)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	page, limit := store.NormalizePage(filter.Page, filter.Limit, false)
	return a.query(ctx, where, args, filter.Sort, page, limit)
}

func (a *Adapter) SearchUsers(ctx context.Context, q store.SearchQuery) (*store.SearchResult, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return nil, store.ErrMissingSearchTerm
	}
	fields := q.Fields
	if len(fields) == 0 {
		fields = store.SearchFields
	}
	var conds []string
	var args []any
	for i, f := range fields {
		conds = append(conds, fmt.Sprintf("lower(%s) LIKE '%%' || lower($%d) || '%%'", string(f), i+1))
		args = append(args, term)
	}
	where := " WHERE " + strings.Join(conds, " OR ")
	page, limit := store.NormalizePage(q.Page, q.Limit, true)
	return a.query(ctx, where, args, q.Sort, page, limit)
}

func (a *Adapter) query(ctx context.Context, where string, args []any, sortKeys []store.SortKey, page, limit int) (*store.SearchResult, error) {
	var total int
	countQ := a.d.rebind("SELECT count(*) FROM users" + where)
	if err := a.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, err
	}

	sel := "SELECT " + userColumns + " FROM users" + where + orderBy(sortKeys)
	if limit > 0 {
		sel += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, store.Offset(page, limit))
	}
	rows, err := a.db.QueryContext(ctx, a.d.rebind(sel), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &store.SearchResult{Total: total, Length: len(users), Users: users}, nil
}

func orderBy(keys []store.SortKey) string {
	if len(keys) == 0 {
		keys = store.DefaultSort
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		if k.Field == store.FieldSignupDate {
			parts = append(parts, "signup_date "+dir)
			continue
		}
		parts = append(parts, "lower("+string(k.Field)+") "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*entity.User, error) {
	u := &entity.User{}
	err := row.Scan(&u.ID, &u.Firstname, &u.Lastname, &u.Username, &u.Email, &u.PasswordHash, &u.SignupDate)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (a *Adapter) findOne(ctx context.Context, cond string, arg any) (*entity.User, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	q := a.d.rebind("SELECT " + userColumns + " FROM users WHERE " + cond)
	u, err := scanUser(a.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return a.findOne(ctx, "lower(email) = lower($1)", email)
}

func (a *Adapter) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return a.findOne(ctx, "lower(username) = lower($1)", username)
}

func (a *Adapter) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return a.findOne(ctx, "id = $1", id)
}

func (a *Adapter) UpdateUser(ctx context.Context, id string, patch store.UpdatePatch) (*entity.User, error) {
	if a.db == nil {
		return nil, store.ErrNotConnected
	}
	var sets []string
	var args []any
	n := 0
	set := func(col string, val string) {
		n++
		sets = append(sets, fmt.Sprintf("%s = $%d", col, n))
		args = append(args, val)
	}
	if patch.Firstname != nil {
		set("firstname", *patch.Firstname)
	}
	if patch.Lastname != nil {
		set("lastname", *patch.Lastname)
	}
	if patch.Username != nil {
		set("username", *patch.Username)
	}
	if patch.Email != nil {
		set("email", *patch.Email)
	}
	if len(sets) > 0 {
		n++
		args = append(args, id)
		q := a.d.rebind(fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), n))
		res, err := a.db.ExecContext(ctx, q, args...)
		if err != nil {
			if field, ok := a.d.uniqueField(err); ok {
				return nil, &store.UserExistsError{Field: field}
			}
			return nil, err
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return nil, store.ErrNotFound
		}
	}
	u, err := a.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, store.ErrNotFound
	}
	return u, nil
}

// DeleteUser removes the row; a missing id is not an error.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	if a.db == nil {
		return store.ErrNotConnected
	}
	_, err := a.db.ExecContext(ctx, a.d.rebind("DELETE FROM users WHERE id = $1"), id)
	return err
}

var _ store.Adapter = (*Adapter)(nil)
