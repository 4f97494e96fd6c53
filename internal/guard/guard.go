// Package guard evaluates role and area permissions for protected writes.
// Checks are pure functions of the acting principal and the target; callers
// must consult the guard before touching the corresponding rows.
package guard

import (
	"fmt"
	"net/http"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleOversight Role = "oversight"
	RoleMember    Role = "member"
)

// Collection names the guarded top-level collections.
type Collection string

const (
	CollectionUsers          Collection = "users"
	CollectionStrategicGoals Collection = "strategicGoals"
	CollectionIndicators     Collection = "indicators"
	CollectionMeetings       Collection = "meetings"
)

// Principal is the authenticated actor, as carried in the bearer token.
type Principal struct {
	ID   string
	Name string
	Role Role
	Area string
}

// DeniedError names the record or collection the actor may not touch.
type DeniedError struct {
	Status int
	Target string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("permission denied for %s", e.Target)
}

func deny(target string) *DeniedError {
	return &DeniedError{Status: http.StatusForbidden, Target: target}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleManager, RoleOversight, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}

// CheckCollection authorizes a write to a guarded collection as a whole.
// Users and strategic goals are admin-only; meetings allow the oversight
// role as well. Indicators pass here for admins and managers, with the
// per-record area restriction enforced by CheckIndicator.
func CheckCollection(p Principal, collection Collection) *DeniedError {
	if p.Role == RoleAdmin {
		return nil
	}
	switch collection {
	case CollectionMeetings:
		if p.Role == RoleOversight {
			return nil
		}
	case CollectionIndicators:
		if p.Role == RoleManager {
			return nil
		}
	}
	return deny(string(collection))
}

// CheckIndicator authorizes a write to one indicator record. Managers may
// only touch indicators whose responsible area matches their own; for
// records that already exist the stored area is authoritative.
func CheckIndicator(p Principal, indicatorName, responsibleArea string) *DeniedError {
	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleManager:
		if p.Area == responsibleArea {
			return nil
		}
	}
	return deny(fmt.Sprintf("indicator %q (area %q)", indicatorName, responsibleArea))
}
