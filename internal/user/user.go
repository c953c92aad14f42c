package user

import (
	"strings"
	"time"
)

// Department roles, lowest to highest authority.
const (
	RoleMember   = "member"
	RoleLeader   = "leader"
	RoleAManager = "a_manager"
	RoleManager  = "manager"
)

// DefaultDepartment is assigned to accounts registered without one.
const DefaultDepartment = "ME"

var validRoles = map[string]struct{}{
	RoleMember:   {},
	RoleLeader:   {},
	RoleAManager: {},
	RoleManager:  {},
}

var validGroups = map[string]struct{}{
	"Lean": {},
	"IE":   {},
	"Data": {},
}

// User is a department account. Group is empty for managers and assistant
// managers, who operate across groups.
type User struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	Name       string    `json:"name" bson:"name"`
	Email      string    `json:"email" bson:"email"`
	Password   string    `json:"-" bson:"password"`
	Role       string    `json:"role" bson:"role"`
	Department string    `json:"department" bson:"department"`
	Group      string    `json:"group,omitempty" bson:"group,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// IsManager reports whether the user holds a manager-level role.
func (u User) IsManager() bool {
	return u.Role == RoleManager || u.Role == RoleAManager
}

// CanAssign reports whether the user may create and assign tasks.
func (u User) CanAssign() bool {
	return u.IsManager() || u.Role == RoleLeader
}

// CanReview reports whether the user may review a task whose assignee
// belongs to assigneeGroup. Managers review anything; a leader only reviews
// tasks inside their own group; members never review.
func (u User) CanReview(assigneeGroup string) bool {
	if u.IsManager() {
		return true
	}
	if u.Role == RoleLeader {
		group := strings.TrimSpace(u.Group)
		return group != "" && group == strings.TrimSpace(assigneeGroup)
	}
	return false
}

func ValidRole(role string) bool {
	_, ok := validRoles[role]
	return ok
}

// ValidGroup accepts the known group names and the empty group.
func ValidGroup(group string) bool {
	if group == "" {
		return true
	}
	_, ok := validGroups[group]
	return ok
}
