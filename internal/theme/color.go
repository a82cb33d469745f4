package theme

import (
	"regexp"
	"sort"
	"strings"
)

// colorPattern accepts hex with 3 to 8 digits, the rgb/rgba/hsl/hsla
// functional forms, and bare alphabetic color names.
var colorPattern = regexp.MustCompile(`^(#[0-9A-Fa-f]{3,8}|rgb\(.*\)|rgba\(.*\)|hsl\(.*\)|hsla\(.*\)|[a-zA-Z]+)$`)

// IsValidColor reports whether s is an accepted color override value.
func IsValidColor(s string) bool {
	// Functional forms may not smuggle a declaration terminator or block.
	if strings.ContainsAny(s, ";{}") {
		return false
	}
	return colorPattern.MatchString(s)
}

// varNamePattern limits custom property names to what CSS allows unescaped.
var varNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SanitizeColors returns the entries of colors whose names are valid CSS
// custom property names and whose values pass IsValidColor. Names may be
// given with or without the leading "--".
func SanitizeColors(colors map[string]string) (valid map[string]string, dropped []string) {
	valid = make(map[string]string, len(colors))
	for name, value := range colors {
		bare := strings.TrimPrefix(name, "--")
		value = strings.TrimSpace(value)
		if bare == "" || !varNamePattern.MatchString(bare) || !IsValidColor(value) {
			dropped = append(dropped, name)
			continue
		}
		valid[bare] = value
	}
	sort.Strings(dropped)
	return valid, dropped
}

// ApplyCustomColors rewrites every `--name: value;` declaration in css whose
// name has an override in colors, including repeated declarations of the
// same name. Invalid overrides are skipped and every other declaration is
// left as is.
func ApplyCustomColors(css string, colors map[string]string) string {
	valid, _ := SanitizeColors(colors)
	if len(valid) == 0 {
		return css
	}

	names := make([]string, 0, len(valid))
	for name := range valid {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		re := regexp.MustCompile(`--` + regexp.QuoteMeta(name) + `\s*:\s*[^;]+;`)
		css = replaceDeclarations(css, re, "--"+name+": "+valid[name]+";")
	}
	return css
}

// replaceDeclarations substitutes decl for each match of re that starts a
// property name, i.e. is not preceded by a name character.
func replaceDeclarations(css string, re *regexp.Regexp, decl string) string {
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(css, -1) {
		if m[0] > 0 && isNameByte(css[m[0]-1]) {
			continue
		}
		b.WriteString(css[last:m[0]])
		b.WriteString(decl)
		last = m[1]
	}
	if last == 0 {
		return css
	}
	b.WriteString(css[last:])
	return b.String()
}

func isNameByte(c byte) bool {
	return c == '-' || c == '_' ||
		('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
