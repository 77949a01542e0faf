package store

import (
	"strings"

	"github.com/halcyonlab/usergate/internal/domain/entity"
)

// Field names a searchable/sortable user attribute in the normalized query DSL.
type Field string

const (
	FieldFirstname  Field = "firstname"
	FieldLastname   Field = "lastname"
	FieldUsername   Field = "username"
	FieldEmail      Field = "email"
	FieldSignupDate Field = "signupdate"
)

// SearchFields is the full OR-combined match set used when "by" is absent.
var SearchFields = []Field{FieldFirstname, FieldLastname, FieldUsername, FieldEmail}

// SortKey is one ordering token of the normalized sort DSL.
type SortKey struct {
	Field Field
	Desc  bool
}

// DefaultSort orders by most recent signup first.
var DefaultSort = []SortKey{{Field: FieldSignupDate, Desc: true}}

// DefaultLimit is the page size applied when the caller does not ask for one.
const DefaultLimit = 20

// ParseBy splits a colon-delimited field list ("firstname:email") into the
// match set for a search. Unknown names are dropped; an empty result falls
// back to all searchable fields.
func ParseBy(by string) []Field {
	var fields []Field
	for _, tok := range strings.Split(by, ":") {
		switch Field(strings.ToLower(strings.TrimSpace(tok))) {
		case FieldFirstname:
			fields = append(fields, FieldFirstname)
		case FieldLastname:
			fields = append(fields, FieldLastname)
		case FieldUsername:
			fields = append(fields, FieldUsername)
		case FieldEmail:
			fields = append(fields, FieldEmail)
		}
	}
	if len(fields) == 0 {
		return SearchFields
	}
	return fields
}

// ParseSort splits an "="-delimited list of field[:asc|desc] tokens
// ("lastname:asc=email") into sort keys. Tokens naming an unknown field are
// dropped; a missing or invalid direction sorts that field descending. When
// nothing valid remains the order falls back to signup-date descending.
func ParseSort(sort string) []SortKey {
	var keys []SortKey
	for _, tok := range strings.Split(sort, "=") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, dir, _ := strings.Cut(tok, ":")
		field := Field(strings.ToLower(strings.TrimSpace(name)))
		switch field {
		case FieldFirstname, FieldLastname, FieldUsername, FieldEmail, FieldSignupDate:
		default:
			continue
		}
		keys = append(keys, SortKey{
			Field: field,
			Desc:  !strings.EqualFold(strings.TrimSpace(dir), "asc"),
		})
	}
	if len(keys) == 0 {
		return DefaultSort
	}
	return keys
}

// NormalizePage clamps page to 1-based and applies the default limit when the
// caller supplied none. unboundedZero keeps limit<=0 as "no limit" (search);
// otherwise non-positive limits fall back to the default (list).
func NormalizePage(page, limit int, unboundedZero bool) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		if unboundedZero {
			return page, 0
		}
		return page, DefaultLimit
	}
	return page, limit
}

// Offset implements standard offset pagination. A zero limit means unbounded
// and always starts at the beginning.
func Offset(page, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (page - 1) * limit
}

// FieldValue extracts the named attribute from a user for matching and
// sorting. signupdate is handled by callers that need time ordering.
func FieldValue(u *entity.User, f Field) string {
	switch f {
	case FieldFirstname:
		return u.Firstname
	case FieldLastname:
		return u.Lastname
	case FieldUsername:
		return u.Username
	case FieldEmail:
		return u.Email
	}
	return ""
}

// MatchesTerm reports whether the user matches the term on any of the given
// fields, substring and case-insensitive.
func MatchesTerm(u *entity.User, term string, fields []Field) bool {
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(FieldValue(u, f)), term) {
			return true
		}
	}
	return false
}

// Less orders two users by the given sort keys, falling back to id for a
// stable total order.
func Less(a, b *entity.User, keys []SortKey) bool {
	for _, k := range keys {
		if k.Field == FieldSignupDate {
			if a.SignupDate.Equal(b.SignupDate) {
				continue
			}
			if k.Desc {
				return a.SignupDate.After(b.SignupDate)
			}
			return a.SignupDate.Before(b.SignupDate)
		}
		av := strings.ToLower(FieldValue(a, k.Field))
		bv := strings.ToLower(FieldValue(b, k.Field))
		if av == bv {
			continue
		}
		if k.Desc {
			return av > bv
		}
		return av < bv
	}
	return a.ID < b.ID
}

// Paginate applies offset pagination to an already sorted, already filtered
// slice and shapes the SearchResult.
func Paginate(users []*entity.User, page, limit int) *SearchResult {
	total := len(users)
	start := Offset(page, limit)
	if start > total {
		start = total
	}
	end := total
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	pageUsers := users[start:end]
	return &SearchResult{Total: total, Length: len(pageUsers), Users: pageUsers}
}
