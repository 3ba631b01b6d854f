package light

// ThemeName selects one of the two palettes.
type ThemeName string

const (
	ThemeLight ThemeName = "light"
	ThemeDark  ThemeName = "dark"
)

// DarkThreshold is the illuminance at or below which the dark theme applies.
const DarkThreshold = 100.0

// Palette holds the colors a presentation layer paints with.
type Palette struct {
	Background string
	Foreground string
}

var palettes = map[ThemeName]Palette{
	ThemeLight: {Background: "#ffffff", Foreground: "#000000"},
	ThemeDark:  {Background: "#000000", Foreground: "#ffffff"},
}

// Palette returns the colors for the theme. Unrecognised names fall back to light.
func (t ThemeName) Palette() Palette {
	if p, ok := palettes[t]; ok {
		return p
	}
	return palettes[ThemeLight]
}

// Select derives the theme for a reading. An unknown reading leaves current
// untouched: it is not re-derived to light.
func Select(current ThemeName, r Reading) ThemeName {
	if !r.Known {
		return current
	}
	if r.Lux > DarkThreshold {
		return ThemeLight
	}
	return ThemeDark
}

// Selector holds the derived theme. The zero value is not usable; use NewSelector.
type Selector struct {
	theme ThemeName
}

// NewSelector starts at the light theme.
func NewSelector() *Selector {
	return &Selector{theme: ThemeLight}
}

// Observe re-evaluates the theme for a new reading and reports whether it changed.
func (s *Selector) Observe(r Reading) (ThemeName, bool) {
	next := Select(s.theme, r)
	changed := next != s.theme
	s.theme = next
	return next, changed
}

// Theme returns the current theme.
func (s *Selector) Theme() ThemeName {
	return s.theme
}
