package docstore

import (
	"path"
	"regexp"
	"strings"

	"pfw-hq/relay/pkg/linkcache"
)

// MaxFilenameLength bounds display filenames.
const MaxFilenameLength = 255

var (
	unsafeRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

	// registeredFilename is the shape sibling servers must send.
	registeredFilename = regexp.MustCompile(`(?i)^[A-Z0-9_.-]+\.pdf$`)
)

// SanitizeFilename reduces name to a safe single path segment with an
// extension matching hint. It returns "" when nothing usable remains.
func SanitizeFilename(name string, hint linkcache.ContentHint) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(name))
	name = unsafeRun.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" || strings.Trim(name, "_-.") == "" {
		return ""
	}

	want := hint.Extension()
	ext := path.Ext(name)
	if !strings.EqualFold(ext, want) {
		ext = want
	} else {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.TrimRight(name, ".")

	if max := MaxFilenameLength - len(ext); len(name) > max {
		name = name[:max]
	}
	return name + ext
}

// joinFilename builds a fallback name from non-empty parts.
func joinFilename(hint linkcache.ContentHint, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return SanitizeFilename(strings.Join(kept, "_"), hint)
}
