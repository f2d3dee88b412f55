// Package models holds the user-side types consumed by the card visibility
// engine. The identity collaborator builds these; entity membership is already
// flattened (parent/child entities resolved) before a UserContext reaches this
// service.
package models

// Right is the access level a perimeter grants on a (process, state) pair.
type Right string

const (
	RightReceive         Right = "Receive"
	RightReceiveAndWrite Right = "ReceiveAndWrite"
)

// CanReceive reports whether the right allows viewing cards.
func (r Right) CanReceive() bool {
	return r == RightReceive || r == RightReceiveAndWrite
}

// CanWrite reports whether the right allows publishing, editing and deleting.
func (r Right) CanWrite() bool {
	return r == RightReceiveAndWrite
}

// Permission is a global role flag carried by a user.
type Permission string

const (
	PermissionReadOnly Permission = "READONLY"
	PermissionAdmin    Permission = "ADMIN"
)

// ComputedPerimeter is the merged per-user right for one (process, state),
// derived from all perimeters of all groups the user belongs to.
// ReceiveAndWrite dominates Receive during the merge.
type ComputedPerimeter struct {
	Process string `json:"process"`
	State   string `json:"state"`
	Right   Right  `json:"rights"`
}

// User identifies a person and their flattened memberships.
type User struct {
	Login    string   `json:"login"`
	Groups   []string `json:"groups"`
	Entities []string `json:"entities"`
}

// UserContext is a user plus everything the resolver needs: computed
// perimeters and per-process notification opt-outs.
type UserContext struct {
	User                       User                `json:"userData"`
	ComputedPerimeters         []ComputedPerimeter `json:"computedPerimeters"`
	Permissions                []Permission        `json:"permissions,omitempty"`
	ProcessesStatesNotNotified map[string][]string `json:"processesStatesNotNotified,omitempty"`
}

// IsReadOnly reports whether the user carries the READONLY permission, which
// blocks every write operation regardless of perimeters.
func (u UserContext) IsReadOnly() bool {
	for _, p := range u.Permissions {
		if p == PermissionReadOnly {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user carries the ADMIN permission.
func (u UserContext) IsAdmin() bool {
	for _, p := range u.Permissions {
		if p == PermissionAdmin {
			return true
		}
	}
	return false
}

// MemberOfEntity reports whether the user belongs to the given entity.
func (u UserContext) MemberOfEntity(entity string) bool {
	for _, e := range u.User.Entities {
		if e == entity {
			return true
		}
	}
	return false
}

// MustBeNotified reports whether the user has NOT opted out of notifications
// for the given process and state.
func (u UserContext) MustBeNotified(process, state string) bool {
	states, ok := u.ProcessesStatesNotNotified[process]
	if !ok {
		return true
	}
	for _, s := range states {
		if s == state {
			return false
		}
	}
	return true
}
