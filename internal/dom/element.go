package dom

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Element wraps an element node of an HTMLDocument.
type Element struct {
	node *html.Node
}

// Tag returns the element's tag name.
func (e *Element) Tag() string { return e.node.Data }

// Attr returns the value of an attribute.
func (e *Element) Attr(key string) string { return attr(e.node, key) }

// Classes returns the element's class list.
func (e *Element) Classes() []string { return strings.Fields(attr(e.node, "class")) }

// HasClass reports whether the element carries class.
func (e *Element) HasClass(class string) bool {
	return slices.Contains(e.Classes(), class)
}

// HasAnyClass reports whether the element carries one of classes.
func (e *Element) HasAnyClass(classes ...string) bool {
	for _, c := range e.Classes() {
		if slices.Contains(classes, c) {
			return true
		}
	}
	return false
}

// AddClass adds classes not already present.
func (e *Element) AddClass(classes ...string) { addClass(e.node, classes...) }

// QueryAll returns the descendants of e carrying any of classes, in
// document order. e itself is not included.
func (e *Element) QueryAll(classes ...string) []*Element {
	return queryAll(e.node, classes, false)
}

// Style returns the value of an inline style property.
func (e *Element) Style(prop string) string {
	for _, decl := range parseStyle(attr(e.node, "style")) {
		if decl[0] == prop {
			return decl[1]
		}
	}
	return ""
}

// SetStyle sets an inline style property, replacing an existing value.
func (e *Element) SetStyle(prop, value string) {
	decls := parseStyle(attr(e.node, "style"))
	replaced := false
	for i := range decls {
		if decls[i][0] == prop {
			decls[i][1] = value
			replaced = true
		}
	}
	if !replaced {
		decls = append(decls, [2]string{prop, value})
	}

	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d[0]+": "+d[1])
	}
	setAttr(e.node, "style", strings.Join(parts, "; ")+";")
}

// parseStyle splits an inline style attribute into property/value pairs.
func parseStyle(s string) [][2]string {
	var out [][2]string
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		out = append(out, [2]string{prop, strings.TrimSpace(value)})
	}
	return out
}

func queryAll(root *html.Node, classes []string, includeRoot bool) []*Element {
	var out []*Element
	walk(root, func(n *html.Node) {
		if n == root && !includeRoot {
			return
		}
		if n.Type != html.ElementNode {
			return
		}
		el := &Element{node: n}
		if el.HasAnyClass(classes...) {
			out = append(out, el)
		}
	})
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func addClass(n *html.Node, classes ...string) {
	current := strings.Fields(attr(n, "class"))
	changed := false
	for _, c := range classes {
		if c != "" && !slices.Contains(current, c) {
			current = append(current, c)
			changed = true
		}
	}
	if changed {
		setAttr(n, "class", strings.Join(current, " "))
	}
}
