package objectstore

import (
	"path"
	"strings"
)

// Key builds the object key for an archived binary: <prefix>/<arcDocID>_data.
func Key(prefix, arcDocID string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	name := arcDocID + "_data"
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
