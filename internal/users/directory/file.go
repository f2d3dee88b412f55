package directory

import (
	"encoding/json"
	"fmt"
	"os"

	"cardfeed/internal/users/models"
)

// LoadFile provisions the directory from a JSON file holding an array of
// user contexts. Used at startup when no external identity service feeds
// the directory.
func (d *MemoryDirectory) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read users file: %w", err)
	}
	var users []models.UserContext
	if err := json.Unmarshal(raw, &users); err != nil {
		return fmt.Errorf("parse users file: %w", err)
	}
	for _, user := range users {
		if err := d.Upsert(user); err != nil {
			return fmt.Errorf("user %q: %w", user.User.Login, err)
		}
	}
	return nil
}
