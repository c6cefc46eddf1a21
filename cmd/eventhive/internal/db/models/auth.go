package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Role determines which routes a user may access.
type Role string

const (
	RoleStudent   Role = "Student"
	RoleOrganizer Role = "Organizer"
	RoleAdmin     Role = "Admin"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleOrganizer, RoleStudent}

// SelfServiceRoles lists the roles a visitor may pick when signing up.
// Admins are created out of band with the CLI.
var SelfServiceRoles = []Role{RoleStudent, RoleOrganizer}

// ParseRole converts a role name to a Role.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Subject returns the casbin subject for the role.
func (r Role) Subject() string {
	return "role:" + string(r)
}

// User is an account that can sign in.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username,notnull,unique,type:varchar(64)"`
	Email        string    `bun:"email,notnull,unique,type:varchar(120)"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         Role      `bun:"role,notnull,type:varchar(20),default:'Student'"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Session is a server-side login session referenced by the session cookie.
// Only the SHA-256 hash of the cookie token is stored.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID         string    `bun:"id,pk,type:varchar(36)"`
	UserID     int64     `bun:"user_id,notnull"`
	TokenHash  string    `bun:"token_hash,notnull,unique"`
	Remember   bool      `bun:"remember,notnull,default:false"`
	UserAgent  string    `bun:"user_agent"`
	IPAddress  string    `bun:"ip_address"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	LastUsedAt time.Time `bun:"last_used_at,nullzero"`
	Revoked    bool      `bun:"revoked,notnull,default:false"`

	User *User `bun:"rel:belongs-to,join:user_id=id"`
}
