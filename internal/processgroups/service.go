// Package processgroups holds the uploaded grouping of processes used by
// clients to organise their feed filters. Uploads replace the whole set.
package processgroups

import (
	"context"
	"log/slog"
	"sync"

	dErrors "cardfeed/pkg/domainerrors"
	pstrings "cardfeed/pkg/platform/strings"
)

// Group names a set of processes presented together.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Processes []string `json:"processes"`
}

// Service stores the current process group set in memory.
type Service struct {
	logger *slog.Logger

	mu     sync.RWMutex
	groups []Group
}

func New(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Replace installs a new process group set wholesale. A process listed in
// more than one group rejects the whole upload, nothing is applied.
func (s *Service) Replace(ctx context.Context, groups []Group) error {
	seen := make(map[string]string)
	cleaned := make([]Group, 0, len(groups))
	for _, g := range groups {
		if g.ID == "" {
			return dErrors.New(dErrors.CodeBadRequest, "process group id is required")
		}
		g.Processes = pstrings.DedupeAndTrim(g.Processes)
		for _, p := range g.Processes {
			if other, ok := seen[p]; ok && other != g.ID {
				return dErrors.Newf(dErrors.CodeConflict,
					"process %s appears in more than one process group", p)
			}
			seen[p] = g.ID
		}
		cleaned = append(cleaned, g)
	}

	s.mu.Lock()
	s.groups = cleaned
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "process groups replaced", "groups", len(cleaned))
	return nil
}

// List returns the current process group set.
func (s *Service) List(ctx context.Context) []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Group, len(s.groups))
	copy(out, s.groups)
	return out
}
