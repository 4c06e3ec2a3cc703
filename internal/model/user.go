package model

import (
	"strings"
	"time"
)

// Role is the label the authorization gate matches against.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleCashier  Role = "cashier"
	RoleWaiter   Role = "waiter"
	RoleKitchen  Role = "kitchen"
	RoleCustomer Role = "customer"
)

var knownRoles = map[Role]bool{
	RoleOwner: true, RoleAdmin: true, RoleManager: true, RoleCashier: true,
	RoleWaiter: true, RoleKitchen: true, RoleCustomer: true,
}

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return knownRoles[r] }

// User represents an identity record as stored in the `users` table.
// PasswordHash never leaves the service layer; handlers render PublicUser.
type User struct {
	ID           uint64     // users.id
	Username     string     // users.username (unique)
	Email        string     // users.email (unique, lower-cased)
	PasswordHash string     // users.password_hash (bcrypt)
	Role         Role       // users.role
	FirstName    string     // users.first_name
	LastName     string     // users.last_name
	Phone        string     // users.phone
	IsActive     bool       // users.is_active
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
	LastLogin    *time.Time // users.last_login (nullable)
}

// PublicUser is the client-facing projection of User without the secret hash.
type PublicUser struct {
	ID        uint64     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Phone     string     `json:"phone"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// Public strips the secret hash.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		LastLogin: u.LastLogin,
	}
}

// RefreshToken models an entry in the `refresh_tokens` table.  The raw
// token is never stored; only its SHA-256 hex digest.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	TokenHash string    // refresh_tokens.token_hash
	ExpiresAt time.Time // refresh_tokens.expires_at
	Revoked   bool      // refresh_tokens.revoked
	CreatedAt time.Time // refresh_tokens.created_at

	RevokeReason string // refresh_tokens.revoke_reason, empty while live
}

// Reasons recorded when a refresh token is revoked.  Only RevokeRotated
// rows signal reuse when presented again.
const (
	RevokeRotated  = "rotated"
	RevokeLogout   = "logout"
	RevokeExpired  = "expired"
	RevokeInactive = "inactive"
	RevokeReuse    = "reuse"
)

// Live reports whether the row can still be exchanged at instant now.
func (t RefreshToken) Live(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
