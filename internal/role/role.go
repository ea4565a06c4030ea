// Package role is the single place where user roles are compared.
package role

import "github.com/kiwari-pos/procurement/internal/enum"

const (
	RankStaff   = 0
	RankManager = 1
	RankOwner   = 2
)

var ranks = map[string]int{
	enum.UserRoleStaff:   RankStaff,
	enum.UserRoleManager: RankManager,
	enum.UserRoleOwner:   RankOwner,
}

// Rank returns the ordinal of a role. ok is false for unknown roles.
func Rank(role string) (rank int, ok bool) {
	rank, ok = ranks[role]
	return rank, ok
}

// AtLeast reports whether role ranks at or above min. Unknown roles never qualify.
func AtLeast(role, min string) bool {
	r, ok := ranks[role]
	if !ok {
		return false
	}
	m, ok := ranks[min]
	if !ok {
		return false
	}
	return r >= m
}

// Valid reports whether role is one of the known roles.
func Valid(role string) bool {
	_, ok := ranks[role]
	return ok
}

// ForRank maps an ordinal back to its role name.
func ForRank(rank int) (string, bool) {
	for name, r := range ranks {
		if r == rank {
			return name, true
		}
	}
	return "", false
}
