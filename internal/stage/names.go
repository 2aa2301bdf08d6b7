package stage

import (
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/normalization"
)

// Name is a strongly-typed identifier for a transform stage.
type Name string

// Canonical stage names.
const (
	Styles  Name = "styles"
	Scripts Name = "scripts"
	Images  Name = "images"
	Markup  Name = "markup"
	Lib     Name = "lib"
	Static  Name = "static"
)

// Names lists every stage in a stable order.
func Names() []Name {
	return []Name{Styles, Scripts, Images, Markup, Lib, Static}
}

var nameNormalizer = normalization.NewNormalizer("stage", map[string]Name{
	"styles":  Styles,
	"css":     Styles,
	"scripts": Scripts,
	"js":      Scripts,
	"images":  Images,
	"markup":  Markup,
	"html":    Markup,
	"lib":     Lib,
	"static":  Static,
}, "")

// ParseName resolves user input (including short aliases like css or js).
func ParseName(raw string) (Name, error) {
	return nameNormalizer.NormalizeWithError(raw)
}

// InjectsInPlace reports whether browsers can hot-swap this stage's output
// without a full page reload.
func (n Name) InjectsInPlace() bool {
	return n == Styles || n == Images
}
