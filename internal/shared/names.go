package shared

import (
	"errors"
	"regexp"
)

// MaxClientNameLen bounds client names; the PKI uses them as file names.
const MaxClientNameLen = 64

var clientNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

var ErrInvalidClientName = errors.New("invalid client name")

// ValidClientName reports whether name may be passed to the script or joined into
// a PKI path. Every route that accepts a client name must check it first.
func ValidClientName(name string) bool {
	return clientNameRe.MatchString(name)
}
