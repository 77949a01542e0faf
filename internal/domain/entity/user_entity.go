package entity

import (
	"strings"
	"time"
)

// User is the aggregate root for the identity domain.
// PasswordHash holds a bcrypt hash and must never be serialized to clients;
// every outbound representation goes through Public().
type User struct {
	ID           string
	Firstname    string
	Lastname     string
	Username     string
	Email        string
	PasswordHash string
	SignupDate   time.Time
}

// FullName joins firstname and lastname with a single space.
func (u *User) FullName() string {
	return strings.TrimSpace(u.Firstname + " " + u.Lastname)
}

// PublicUser is the only user shape allowed to cross the API boundary.
type PublicUser struct {
	ID         string    `json:"id"`
	Firstname  string    `json:"firstname"`
	Lastname   string    `json:"lastname"`
	Fullname   string    `json:"fullname"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	SignupDate time.Time `json:"signupDate"`
}

// Public returns the client-safe projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Firstname:  u.Firstname,
		Lastname:   u.Lastname,
		Fullname:   u.FullName(),
		Username:   u.Username,
		Email:      u.Email,
		SignupDate: u.SignupDate,
	}
}
