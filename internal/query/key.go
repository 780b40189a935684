package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies one cacheable read, e.g. ["blog", "3"].
type Key []string

// NewKey canonicalizes parts with fmt.Sprint so that 3 and "3" produce the
// same key.
func NewKey(parts ...any) Key {
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = strings.TrimSpace(fmt.Sprint(p))
	}
	return k
}

// Enabled reports whether the key may be fetched. A key with no parts or an
// empty part (an id not selected yet) is disabled.
func (k Key) Enabled() bool {
	if len(k) == 0 {
		return false
	}
	for _, p := range k {
		if p == "" {
			return false
		}
	}
	return true
}

// HasPrefix reports whether every part of prefix matches the start of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	quoted := make([]string, len(k))
	for i, p := range k {
		quoted[i] = strconv.Quote(p)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func (k Key) hash() string {
	return k.String()
}
