package user

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pricewise/pkg/errors"
)

// User is a business account owning a catalog.
type User struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	BusinessName string    `db:"business_name"`
	IsActive     bool      `db:"is_active"`
	Settings     Settings  `db:"settings"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Settings is stored as JSONB.
type Settings struct {
	// Goals are business goal tags, see internal/agents.Goal.
	Goals    []string `json:"goals"`
	Timezone string   `json:"timezone"`
}

func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Settings) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = Settings{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.Newf("unsupported settings type %T", src)
	}
}
