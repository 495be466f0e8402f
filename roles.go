package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

var roleHierarchy = map[Role]int{
	RoleUser:       0,
	RoleSubscriber: 1,
	RolePatron:     2,
	RolePremium:    3,
	RoleSponsor:    4,
	RoleAdmin:      5,
}

// NormalizeRole is the single place raw role strings become Role values.
// Source data is inconsistently cased across tables, so we fold case here
// and nowhere else.
func NormalizeRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := roleHierarchy[role]
	return role, ok
}

// RoleRank returns the position of a role in the fixed total order.
// Unknown roles rank below RoleUser.
func RoleRank(role Role) int {
	if rank, ok := roleHierarchy[role]; ok {
		return rank
	}
	return -1
}

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(role Role) bool {
	_, ok := roleHierarchy[role]
	return ok
}

// IsAtLeast checks if role meets the minimum required level
func IsAtLeast(role, minRole Role) bool {
	current, ok := roleHierarchy[role]
	if !ok {
		return false
	}
	min, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}
	return current >= min
}

// HasAccess reports whether userRole satisfies requiredRole. Admin always
// passes; otherwise the role must rank at or above the requirement.
func HasAccess(userRole, requiredRole Role) bool {
	if userRole == RoleAdmin {
		return true
	}
	return IsAtLeast(userRole, requiredRole)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RoleSubscriber,
		RolePatron,
		RolePremium,
		RoleSponsor,
		RoleAdmin,
	}
}

// RoleResolver computes the effective authorization role for a user from the
// role assignment store. Role lookups always run through an elevated-trust
// store handle; the assignment row is the source of truth for authorization
// and must not be gated on the requesting user's own row permissions.
type RoleResolver struct {
	store  RoleStore
	logger Logger
}

// NewRoleResolver returns a RoleResolver backed by the given store.
func NewRoleResolver(store RoleStore) *RoleResolver {
	return &RoleResolver{
		store:  store,
		logger: defLogger{},
	}
}

func (r *RoleResolver) WithLogger(logger Logger) *RoleResolver {
	r.logger = logger
	return r
}

// RoleFor reads all assignment rows for the user and returns the
// highest-privilege role per the fixed hierarchy. No rows means RoleUser.
// Store failures surface as ErrStoreUnavailable, never as a silent default:
// treating an unreachable store as "anonymous" would under-authorize an
// otherwise legitimate admin.
func (r *RoleResolver) RoleFor(ctx context.Context, userID uuid.UUID) (Role, error) {
	names, err := r.store.FindRoleNames(ctx, userID)
	if err != nil {
		r.logger.Error("RoleFor store read failed for user %s: %v", userID, err)
		return "", WrapStoreUnavailable(err)
	}

	effective := RoleUser
	for _, raw := range names {
		role, ok := NormalizeRole(raw)
		if !ok {
			r.logger.Warn("RoleFor skipping unknown role name %q for user %s", raw, userID)
			continue
		}
		if RoleRank(role) > RoleRank(effective) {
			effective = role
		}
	}

	return effective, nil
}
