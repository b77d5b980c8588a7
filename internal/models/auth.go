package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is carried in access tokens issued by the auth service.
type UserRole string

const (
	RoleSuperAdmin     UserRole = "SUPERADMIN"
	RoleAdmin          UserRole = "ADMIN"
	RoleInstituteAdmin UserRole = "INSTITUTE_ADMIN"
	RoleStaff          UserRole = "STAFF"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Role        UserRole `json:"role"`
	InstituteID string   `json:"institute_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor identifies who performs an engine operation. An empty InstituteID means the actor
// may act on every institute.
type Actor struct {
	UserID      string
	InstituteID string
}

// ActorFromClaims derives the actor of a verified token. Super admins are not scoped.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	actor := Actor{UserID: claims.UserID}
	if claims.Role != RoleSuperAdmin {
		actor.InstituteID = claims.InstituteID
	}
	return actor
}

// CanAccess reports whether the actor may act on the institute.
func (a Actor) CanAccess(instituteID string) bool {
	return a.InstituteID == "" || a.InstituteID == instituteID
}
