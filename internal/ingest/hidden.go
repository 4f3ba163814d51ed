package ingest

import (
	"strings"
)

// Names that are junk regardless of platform. Dot-prefixed names are
// handled separately so the list only carries the non-dot offenders.
var hiddenNames = map[string]struct{}{
	"__macosx":    {},
	"thumbs.db":   {},
	"desktop.ini": {},
}

// IsHiddenName reports whether a single path element should be dropped
// from an upload: dotfiles, macOS resource-fork directories and Windows
// shell droppings.
func IsHiddenName(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := hiddenNames[strings.ToLower(name)]
	return ok
}

// IsHiddenPath reports whether any element of a slash-separated relative
// path is hidden. A visible file inside a hidden directory is still
// hidden; filtering applies at every depth.
func IsHiddenPath(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if IsHiddenName(part) {
			return true
		}
	}
	return false
}

// FilterHidden returns the slash-separated paths that survive the hidden
// filter, preserving order. Running it twice yields the same result.
func FilterHidden(paths []string) []string {
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if IsHiddenPath(p) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
