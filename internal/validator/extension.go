package validator

import (
	"path/filepath"
	"strings"
)

// Reports whether the extension of `filename` is one of `allowed`, ignoring case.
//
// `allowed` entries include the leading dot (".csv").
func AllowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}

	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}

	return false
}
