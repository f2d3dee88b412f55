// Package directory resolves the full user context for a login: group and
// entity memberships, computed perimeters, permissions and the per-user
// notification suppression settings.
package directory

import (
	"context"
	"sync"

	"cardfeed/internal/users/models"
	dErrors "cardfeed/pkg/domainerrors"
)

// Directory supplies the user context attached to authenticated requests.
type Directory interface {
	UserContext(ctx context.Context, login string) (models.UserContext, error)
}

// MemoryDirectory is an in-memory Directory. Entries are provisioned through
// Upsert, typically at startup or through the admin endpoint.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]models.UserContext
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]models.UserContext)}
}

// Upsert stores or replaces the context for user.Login.
func (d *MemoryDirectory) Upsert(user models.UserContext) error {
	if user.User.Login == "" {
		return dErrors.New(dErrors.CodeBadRequest, "login is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.User.Login] = user
	return nil
}

// Delete removes the context for login, if present.
func (d *MemoryDirectory) Delete(login string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, login)
}

func (d *MemoryDirectory) UserContext(_ context.Context, login string) (models.UserContext, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[login]
	if !ok {
		return models.UserContext{}, dErrors.Newf(dErrors.CodeNotFound, "user %q not found", login)
	}
	return user, nil
}
