package builder

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

const localRepositoryPrefix = "launchbridge/"

// ImageRef resolves the image reference for a build. With a repository the
// run id is the tag; otherwise the reference is local and derived from the
// project content so repeated builds of the same job reuse it.
func ImageRef(p Project, repository string, ep EntryPoint) string {
	if repository != "" {
		tag := p.RunID
		if tag == "" {
			tag = contentTag(p, ep)
		}
		return repository + ":" + tag
	}
	return localRepositoryPrefix + slug(p.Name) + ":" + contentTag(p, ep)
}

func contentTag(p Project, ep EntryPoint) string {
	dir := p.Dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	h := blake3.New()
	for _, field := range []string{
		p.Name,
		dir,
		p.Resource,
		p.BaseImage,
		p.Requirements,
		ep.Name,
		strings.Join(ep.Command, "\x1f"),
	} {
		_, _ = h.Write([]byte(field))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// slug lowercases name and keeps only characters valid in a repository path
// component.
func slug(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-._")
	if s == "" {
		return "project"
	}
	return s
}
