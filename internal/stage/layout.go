package stage

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Descriptor declares which source files a stage owns. All patterns are
// slash-separated doublestar globs relative to the source root.
type Descriptor struct {
	Name Name
	// Root is the source-relative directory a watcher or walk starts from ("" = source root).
	Root     string
	Include  []string
	Exclude  []string
	Dotfiles bool
	// Fallback marks the stage that owns every file no other stage claims.
	Fallback bool
}

// matches reports whether the descriptor's own patterns select rel.
func (d Descriptor) matches(rel string) bool {
	if !d.Dotfiles && hasDotSegment(rel) {
		return false
	}
	for _, pattern := range d.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	for _, pattern := range d.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Layout is the ownership table of every stage for one configuration.
type Layout struct {
	descriptors map[Name]Descriptor
	explicit    []Name
}

// NewLayout builds the ownership table from configured directory names.
func NewLayout(cfg *config.Config) *Layout {
	l := cfg.Layout
	styles, scripts := slash(l.Styles), slash(l.Scripts)
	images, lib := slash(l.Images), slash(l.Lib)

	descs := []Descriptor{
		{Name: Styles, Root: styles, Include: []string{styles + "/**/*.scss"}},
		{Name: Scripts, Root: scripts, Include: []string{scripts + "/**/*.js"}},
		{Name: Images, Root: images, Include: []string{images + "/**/*.{png,jpg,jpeg,gif,svg,webp}"}},
		{
			Name:    Markup,
			Include: []string{"**/*.{html,ejs,xhtml}", slash(cfg.DataFile)},
			Exclude: []string{lib + "/**"},
		},
		{Name: Lib, Root: lib, Include: []string{lib + "/**"}, Dotfiles: true},
		{Name: Static, Dotfiles: true, Fallback: true},
	}

	layout := &Layout{descriptors: make(map[Name]Descriptor, len(descs))}
	for _, d := range descs {
		layout.descriptors[d.Name] = d
		if !d.Fallback {
			layout.explicit = append(layout.explicit, d.Name)
		}
	}
	return layout
}

// Descriptor returns the descriptor for name.
func (l *Layout) Descriptor(name Name) Descriptor {
	return l.descriptors[name]
}

// Owners returns every non-fallback stage whose patterns select rel.
func (l *Layout) Owners(rel string) []Name {
	var owners []Name
	for _, name := range l.explicit {
		if l.descriptors[name].matches(rel) {
			owners = append(owners, name)
		}
	}
	return owners
}

// Owner returns the single stage responsible for rel.
func (l *Layout) Owner(rel string) Name {
	if owners := l.Owners(rel); len(owners) > 0 {
		return owners[0]
	}
	return Static
}

// Owns reports whether stage name owns the source-relative path rel.
func (l *Layout) Owns(name Name, rel string) bool {
	rel = slash(rel)
	d, ok := l.descriptors[name]
	if !ok {
		return false
	}
	if d.Fallback {
		return len(l.Owners(rel)) == 0
	}
	return d.matches(rel)
}

// Conflict is a source file claimed by more than one stage.
type Conflict struct {
	Path   string
	Stages []Name
}

// CheckDisjoint walks the source tree and fails if any file is owned by more
// than one stage. A missing source tree has no conflicts.
func (l *Layout) CheckDisjoint(sourceRoot string) error {
	var conflicts []Conflict
	err := filepath.WalkDir(sourceRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == sourceRoot && isNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceRoot, p)
		if err != nil {
			return err
		}
		if owners := l.Owners(filepath.ToSlash(rel)); len(owners) > 1 {
			conflicts = append(conflicts, Conflict{Path: filepath.ToSlash(rel), Stages: owners})
		}
		return nil
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "walk source tree").
			Fatal().WithContext("path", sourceRoot).Build()
	}
	if len(conflicts) == 0 {
		return nil
	}

	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, fmt.Sprintf("%s (%v)", c.Path, c.Stages))
	}
	return ferrors.ConfigError("stage ownership overlaps: "+strings.Join(parts, ", ")).
		WithContext("count", len(conflicts)).
		Build()
}

func hasDotSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func slash(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	if p == "." {
		return ""
	}
	return p
}

// Files returns the sorted source-relative paths owned by name under sourceRoot.
func (l *Layout) Files(name Name, sourceRoot string) ([]string, error) {
	return collect(l, name, sourceRoot)
}
