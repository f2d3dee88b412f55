// Package perimeter builds the per-user (process, state) -> right lookup used
// by the recipient resolver and the publication permission checks.
package perimeter

import (
	usermodels "cardfeed/internal/users/models"
)

// Index maps "process.state" keys to the merged right a user holds there.
type Index map[string]usermodels.Right

// BuildIndex merges a user's computed perimeters into a lookup table.
// ReceiveAndWrite dominates Receive when the same key appears twice.
func BuildIndex(user usermodels.UserContext) Index {
	idx := make(Index, len(user.ComputedPerimeters))
	for _, p := range user.ComputedPerimeters {
		key := p.Process + "." + p.State
		if existing, ok := idx[key]; ok && existing == usermodels.RightReceiveAndWrite {
			continue
		}
		idx[key] = p.Right
	}
	return idx
}

// CanReceive reports whether the index grants a viewing right on the pair.
func (i Index) CanReceive(process, state string) bool {
	return i[process+"."+state].CanReceive()
}

// CanWrite reports whether the index grants a writing right on the pair.
func (i Index) CanWrite(process, state string) bool {
	return i[process+"."+state].CanWrite()
}
