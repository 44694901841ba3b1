package store

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// newID returns a time-sortable, prefixed identifier for entities the
// store creates on the caller's behalf (e.g. FindOrCreateActor).
func newID(prefix string) string {
	return prefix + "_" + strings.ToLower(ulid.Make().String())
}
