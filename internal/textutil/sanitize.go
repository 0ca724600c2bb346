// Package textutil cleans untrusted text before it reaches the filesystem.
package textutil

import (
	"path"
	"strings"
)

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName turns a name supplied by a remote party into a single
// safe path element. Directory components are discarded, unsafe characters
// replaced, and leading dots removed so the result is never hidden or a
// parent reference. It returns "" when nothing usable is left.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "/" {
		return ""
	}
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	name = strings.TrimLeft(name, ".")
	return strings.TrimSpace(name)
}
