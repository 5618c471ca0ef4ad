package models

import "slices"

// GlobalRole is the instance-wide role of a user.
type GlobalRole string

const (
	GlobalRoleOwner  GlobalRole = "global:owner"
	GlobalRoleAdmin  GlobalRole = "global:admin"
	GlobalRoleMember GlobalRole = "global:member"
)

// User is the authenticated caller.
type User struct {
	ID    string     `json:"id"    validate:"required"`
	Email string     `json:"email"`
	Role  GlobalRole `json:"role"`
}

// IsAdmin reports whether the user administers the whole instance.
func (u *User) IsAdmin() bool {
	return u.Role == GlobalRoleOwner || u.Role == GlobalRoleAdmin
}

// DisplayName is the name shown next to catalog entries the user publishes.
func (u *User) DisplayName() string {
	if u.Email != "" {
		return u.Email
	}

	return u.ID
}

// Scope is a permission on a workflow.
type Scope string

const (
	ScopeWorkflowRead   Scope = "workflow:read"
	ScopeWorkflowUpdate Scope = "workflow:update"
)

var projectRoleScopes = map[ProjectRole][]Scope{
	ProjectRolePersonalOwner: {ScopeWorkflowRead, ScopeWorkflowUpdate},
	ProjectRoleAdmin:         {ScopeWorkflowRead, ScopeWorkflowUpdate},
	ProjectRoleEditor:        {ScopeWorkflowRead, ScopeWorkflowUpdate},
	ProjectRoleViewer:        {ScopeWorkflowRead},
}

// ProjectRolesWithScopes returns the project roles that grant every given scope.
// Both workflow roles grant all workflow scopes, so the project role alone decides.
func ProjectRolesWithScopes(scopes ...Scope) []ProjectRole {
	roles := make([]ProjectRole, 0, len(projectRoleScopes))

	for _, role := range []ProjectRole{
		ProjectRolePersonalOwner,
		ProjectRoleAdmin,
		ProjectRoleEditor,
		ProjectRoleViewer,
	} {
		granted := projectRoleScopes[role]

		ok := true

		for _, scope := range scopes {
			if !slices.Contains(granted, scope) {
				ok = false

				break
			}
		}

		if ok {
			roles = append(roles, role)
		}
	}

	return roles
}
