package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlab/usergate/internal/domain/entity"
)

func TestParseBy(t *testing.T) {
	tests := []struct {
		name string
		by   string
		want []Field
	}{
		{"single", "email", []Field{FieldEmail}},
		{"multiple", "firstname:lastname", []Field{FieldFirstname, FieldLastname}},
		{"mixed case and spacing", " Username : EMAIL ", []Field{FieldUsername, FieldEmail}},
		{"unknown tokens dropped", "email:shoe_size", []Field{FieldEmail}},
		{"all unknown falls back", "shoe_size:hat_size", SearchFields},
		{"empty falls back", "", SearchFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBy(tt.by))
		})
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		name string
		sort string
		want []SortKey
	}{
		{"explicit asc", "lastname:asc", []SortKey{{Field: FieldLastname, Desc: false}}},
		{"explicit desc", "lastname:desc", []SortKey{{Field: FieldLastname, Desc: true}}},
		{"missing direction is desc", "email", []SortKey{{Field: FieldEmail, Desc: true}}},
		{"garbage direction is desc", "email:sideways", []SortKey{{Field: FieldEmail, Desc: true}}},
		{"multiple keys", "lastname:asc=firstname:asc", []SortKey{
			{Field: FieldLastname, Desc: false},
			{Field: FieldFirstname, Desc: false},
		}},
		{"unknown field dropped", "shoe_size:asc=email:asc", []SortKey{{Field: FieldEmail, Desc: false}}},
		{"empty falls back", "", DefaultSort},
		{"all unknown falls back", "shoe_size=hat_size", DefaultSort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSort(tt.sort))
		})
	}
}

func TestNormalizePage(t *testing.T) {
	page, limit := NormalizePage(0, 0, false)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultLimit, limit)

	page, limit = NormalizePage(-3, -1, true)
	assert.Equal(t, 1, page)
	assert.Zero(t, limit, "unbounded stays unbounded for search")

	page, limit = NormalizePage(4, 7, false)
	assert.Equal(t, 4, page)
	assert.Equal(t, 7, limit)
}

func TestMatchesTerm(t *testing.T) {
	u := &entity.User{Firstname: "Jamie", Lastname: "Lanister", Username: "kingslayer", Email: "jamie@casterlyrock.example"}

	assert.True(t, MatchesTerm(u, "LANIST", []Field{FieldLastname}))
	assert.True(t, MatchesTerm(u, "jamie", SearchFields))
	assert.False(t, MatchesTerm(u, "jamie", []Field{FieldLastname}))
	assert.False(t, MatchesTerm(u, "tyrion", SearchFields))
}

func TestLessOrdering(t *testing.T) {
	now := time.Now().UTC()
	a := &entity.User{ID: "a", Lastname: "Adams", SignupDate: now}
	b := &entity.User{ID: "b", Lastname: "Baker", SignupDate: now.Add(time.Hour)}

	assert.True(t, Less(a, b, []SortKey{{Field: FieldLastname, Desc: false}}))
	assert.False(t, Less(a, b, []SortKey{{Field: FieldLastname, Desc: true}}))
	assert.True(t, Less(b, a, DefaultSort), "newest signup first")

	// Identical keys fall back to id for a stable total order.
	c := &entity.User{ID: "c", Lastname: "Adams", SignupDate: now}
	assert.True(t, Less(a, c, []SortKey{{Field: FieldLastname, Desc: false}}))
	assert.False(t, Less(c, a, []SortKey{{Field: FieldLastname, Desc: false}}))
}

func makeUsers(n int) []*entity.User {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	users := make([]*entity.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, &entity.User{
			ID:         fmt.Sprintf("u%03d", i),
			SignupDate: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return users
}

func TestPaginate(t *testing.T) {
	users := makeUsers(25)

	res := Paginate(users, 1, 10)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 10, res.Length)
	assert.Equal(t, "u000", res.Users[0].ID)

	res = Paginate(users, 3, 10)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 5, res.Length)
	assert.Equal(t, "u020", res.Users[0].ID)

	res = Paginate(users, 9, 10)
	assert.Equal(t, 25, res.Total)
	assert.Zero(t, res.Length, "pages past the end are empty, not an error")

	res = Paginate(users, 1, 0)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 25, res.Length, "zero limit returns everything")
}

// Walking all pages yields each matching user exactly once.
func TestPaginationPartitionsResults(t *testing.T) {
	users := makeUsers(23)
	limit := 5

	seen := map[string]int{}
	for page := 1; ; page++ {
		res := Paginate(users, page, limit)
		require.Equal(t, 23, res.Total)
		if res.Length == 0 {
			break
		}
		for _, u := range res.Users {
			seen[u.ID]++
		}
	}

	require.Len(t, seen, 23)
	for id, n := range seen {
		assert.Equal(t, 1, n, "user %s duplicated across pages", id)
	}
}
