package domain

import "time"

// Account roles accepted by registration.
const (
	AccountParent     = "Parent"
	AccountSpecialist = "Specialist"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"fullName,omitempty"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAtUtc"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName,omitempty"`
	Roles       []string  `json:"roles"`
}

// User is the current account as reported by /api/auth/me.
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName,omitempty"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
