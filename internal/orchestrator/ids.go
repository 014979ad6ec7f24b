package orchestrator

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID is an entity identifier rendered as a canonical UUID string. The
// orchestrator stores ids as 16-byte BLOBs; TEXT ids are passed through.
type ID string

// Scan implements sql.Scanner.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*id = ""
	case []byte:
		if len(v) == 16 {
			u, err := uuid.FromBytes(v)
			if err != nil {
				return fmt.Errorf("orchestrator: id: %w", err)
			}
			*id = ID(u.String())
			return nil
		}
		*id = ID(string(v))
	case string:
		*id = ID(v)
	case int64:
		*id = ID(strconv.FormatInt(v, 10))
	default:
		return fmt.Errorf("orchestrator: cannot scan %T into ID", src)
	}
	return nil
}

// Value implements driver.Valuer, encoding UUID-shaped ids as BLOBs.
func (id ID) Value() (driver.Value, error) {
	if u, err := uuid.Parse(string(id)); err == nil {
		return u[:], nil
	}
	return string(id), nil
}

func (id ID) String() string { return string(id) }

// matchID returns a predicate matching col against an id in any of the
// stored forms. Bind it with idArgs.
func matchID(col string) string {
	return fmt.Sprintf("(%[1]s = ? OR LOWER(CAST(%[1]s AS TEXT)) = LOWER(?) OR LOWER(REPLACE(CAST(%[1]s AS TEXT), '-', '')) = LOWER(?))", col)
}

// idArgs returns the three bind values for matchID: the 16-byte form (nil
// when s is not a UUID), s itself, and s without dashes.
func idArgs(s string) []any {
	var blob any
	if u, err := uuid.Parse(s); err == nil {
		blob = u[:]
	}
	return []any{blob, s, strings.ReplaceAll(s, "-", "")}
}
