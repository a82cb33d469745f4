// Package dom is the page model the theme controller works against: style
// elements in the head, marker classes on the body, observers notified of
// added elements, and dispatched custom events.
//
// HTMLDocument implements it over golang.org/x/net/html so that a served
// page can be parsed, decorated, and rendered back.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Event is a custom event dispatched on the document.
type Event struct {
	Type   string `json:"type"`
	Detail any    `json:"detail,omitempty"`
}

// Observer is called with the element nodes added to the document by one
// mutation.
type Observer func(added []*Element)

// Document is the part of a page the theme controller manipulates.
type Document interface {
	InjectStyle(id, css string)
	RemoveStyle(id string) bool
	RemoveStylesWithPrefix(prefix string) int
	StyleIDs() []string
	StyleText(id string) (string, bool)

	BodyClasses() []string
	AddBodyClass(classes ...string)
	RemoveBodyClassesWithPrefix(prefix string) int

	QueryAll(classes ...string) []*Element
	Observe(fn Observer) (unsubscribe func())
	Dispatch(ev Event)
}

// Compile-time interface guard.
var _ Document = (*HTMLDocument)(nil)

// HTMLDocument is a Document backed by a parsed HTML tree. Its methods are
// safe for concurrent use; Elements handed to observers or returned by
// queries are not.
type HTMLDocument struct {
	mu   sync.Mutex
	root *html.Node
	head *html.Node
	body *html.Node

	nextID    uint64
	observers map[uint64]Observer
	listeners map[string]map[uint64]func(Event)
	events    []Event
}

// NewDocument returns an empty page.
func NewDocument() *HTMLDocument {
	doc, _ := Parse(strings.NewReader("<!DOCTYPE html><html><head></head><body></body></html>"))
	return doc
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*HTMLDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := &HTMLDocument{
		root:      root,
		observers: map[uint64]Observer{},
		listeners: map[string]map[uint64]func(Event){},
	}
	// html.Parse always synthesizes <head> and <body>.
	d.head = findFirst(root, atom.Head)
	d.body = findFirst(root, atom.Body)
	if d.head == nil || d.body == nil {
		return nil, fmt.Errorf("parse html: document has no head or body")
	}
	return d, nil
}

// Render writes the page as HTML.
func (d *HTMLDocument) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String renders the page, returning "" on failure.
func (d *HTMLDocument) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Body returns the body element.
func (d *HTMLDocument) Body() *Element { return &Element{node: d.body} }

// InjectStyle appends <style id=id>css</style> to the head. An existing
// style with the same id is replaced.
func (d *HTMLDocument) InjectStyle(id, css string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old := d.styleLocked(id); old != nil {
		d.head.RemoveChild(old)
	}
	style := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Style,
		Data:     "style",
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	d.head.AppendChild(style)
}

// RemoveStyle removes the style element with the given id.
func (d *HTMLDocument) RemoveStyle(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.styleLocked(id)
	if n == nil {
		return false
	}
	n.Parent.RemoveChild(n)
	return true
}

// RemoveStylesWithPrefix removes every style element whose id starts with
// prefix and returns how many were removed.
func (d *HTMLDocument) RemoveStylesWithPrefix(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var doomed []*html.Node
	walk(d.root, func(n *html.Node) {
		if n.DataAtom == atom.Style && strings.HasPrefix(attr(n, "id"), prefix) {
			doomed = append(doomed, n)
		}
	})
	for _, n := range doomed {
		n.Parent.RemoveChild(n)
	}
	return len(doomed)
}

// StyleIDs returns the ids of all style elements in document order.
func (d *HTMLDocument) StyleIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ids []string
	walk(d.root, func(n *html.Node) {
		if n.DataAtom == atom.Style {
			if id := attr(n, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	})
	return ids
}

// StyleText returns the CSS of the style element with the given id.
func (d *HTMLDocument) StyleText(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.styleLocked(id)
	if n == nil {
		return "", false
	}
	return textContent(n), true
}

func (d *HTMLDocument) styleLocked(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) {
		if found == nil && n.DataAtom == atom.Style && attr(n, "id") == id {
			found = n
		}
	})
	return found
}

// BodyClasses returns the body's class list.
func (d *HTMLDocument) BodyClasses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Fields(attr(d.body, "class"))
}

// AddBodyClass adds classes to the body, skipping ones already present.
func (d *HTMLDocument) AddBodyClass(classes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	addClass(d.body, classes...)
}

// RemoveBodyClassesWithPrefix removes body classes starting with prefix
// and returns how many were removed.
func (d *HTMLDocument) RemoveBodyClassesWithPrefix(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := strings.Fields(attr(d.body, "class"))
	kept := slices.DeleteFunc(slices.Clone(current), func(c string) bool {
		return strings.HasPrefix(c, prefix)
	})
	if len(kept) != len(current) {
		setAttr(d.body, "class", strings.Join(kept, " "))
	}
	return len(current) - len(kept)
}

// QueryAll returns the elements carrying any of classes, in document order.
func (d *HTMLDocument) QueryAll(classes ...string) []*Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return queryAll(d.root, classes, true)
}

// Observe registers fn for element additions. The returned function
// removes it.
func (d *HTMLDocument) Observe(fn Observer) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.observers, id)
		})
	}
}

// ObserverCount returns the number of registered observers.
func (d *HTMLDocument) ObserverCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// AppendHTML parses fragment in the context of parent, appends the
// resulting nodes to it, and notifies observers with the added elements.
// A nil parent means the body.
func (d *HTMLDocument) AppendHTML(parent *Element, fragment string) ([]*Element, error) {
	d.mu.Lock()
	target := d.body
	if parent != nil {
		target = parent.node
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), target)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	var added []*Element
	for _, n := range nodes {
		target.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, &Element{node: n})
		}
	}
	observers := d.observerSnapshotLocked()
	d.mu.Unlock()

	if len(added) > 0 {
		for _, fn := range observers {
			fn(added)
		}
	}
	return added, nil
}

func (d *HTMLDocument) observerSnapshotLocked() []Observer {
	ids := make([]uint64, 0, len(d.observers))
	for id := range d.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.observers[id])
	}
	return out
}

// AddEventListener registers fn for events of the given type. The returned
// function removes it.
func (d *HTMLDocument) AddEventListener(typ string, fn func(Event)) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	if d.listeners[typ] == nil {
		d.listeners[typ] = map[uint64]func(Event){}
	}
	d.listeners[typ][id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners[typ], id)
	}
}

// maxEventHistory bounds the events kept for Events.
const maxEventHistory = 64

// Dispatch records ev and delivers it to listeners of its type.
func (d *HTMLDocument) Dispatch(ev Event) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	if over := len(d.events) - maxEventHistory; over > 0 {
		d.events = slices.Delete(d.events, 0, over)
	}
	ids := make([]uint64, 0, len(d.listeners[ev.Type]))
	for id := range d.listeners[ev.Type] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.listeners[ev.Type][id])
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Events returns the most recent dispatched events, oldest first, keeping
// at most maxEventHistory.
func (d *HTMLDocument) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.events)
}

func findFirst(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.DataAtom == a {
			found = n
		}
	})
	return found
}

// walk calls fn for every node under root, root included, in document order.
func walk(root *html.Node, fn func(*html.Node)) {
	fn(root)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}
