package survey

import "context"

// Role is the authorization class of a caller.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ParseRole maps a stored role string to a Role. Unknown values fall back to
// RoleUser, the column default.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleGuest:
		return RoleGuest
	default:
		return RoleUser
	}
}

// Identity is the principal bound to a request. The zero value is a guest.
type Identity struct {
	Username     string `json:"username,omitempty"`
	Role         Role   `json:"role"`
	VisitorToken string `json:"-"`
}

// Guest returns an identity with no username.
func Guest() Identity {
	return Identity{Role: RoleGuest}
}

// Authenticated reports whether a login is bound to the identity.
func (i Identity) Authenticated() bool {
	return i.Username != "" && i.Role != RoleGuest && i.Role != ""
}

// IsAdmin reports whether the identity carries the admin role.
func IsAdmin(i Identity) bool {
	return i.Authenticated() && i.Role == RoleAdmin
}

// IsOwner reports whether the identity submitted the record.
func IsOwner(i Identity, rec *Record) bool {
	return rec != nil && i.Authenticated() && rec.Surveyor == i.Username
}

// CanRead is always true: every view is readable, guests included.
func CanRead(Identity) bool {
	return true
}

// CanWrite is false for guests.
func CanWrite(i Identity) bool {
	return i.Authenticated()
}

// CanDelete reports whether the identity may remove a record owned by surveyor.
func CanDelete(i Identity, surveyor string) bool {
	return IsAdmin(i) || (i.Authenticated() && surveyor == i.Username)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity bound to ctx, or a guest.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		if id.Role == "" {
			id.Role = RoleGuest
		}
		return id
	}
	return Guest()
}
