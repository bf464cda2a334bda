package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ormasoftchile/lazylink/pkg/providers"
)

// ErrUnknownPath is returned when a dotted path addresses no element.
var ErrUnknownPath = errors.New("unknown element path")

// Player dispatches command lines through the execution loop. It is
// implemented by runtime.Engine.
type Player interface {
	PlayMacro(ctx context.Context, line string)
	PlayMacroValue(ctx context.Context, line, value string)
	ReportError(msg string)
	Debugf(format string, args ...any)
}

// Group is a named set of elements and sub-groups.
type Group struct {
	Name     string
	Path     string
	Elements map[string]*Element
	Groups   map[string]*Group
	order    []string
}

// Map is the root of an extended locator tree. It is built once and never
// modified; every mutating element accessor returns it for chaining.
type Map struct {
	*Group
	player Player
	page   providers.Page
	leaves []*Element
}

// Extend walks root and builds the handle tree. Locator strings are copied
// as-is.
func Extend(root *Node, player Player, page providers.Page) *Map {
	m := &Map{player: player, page: page}
	m.Group = m.buildGroup(root, "")
	return m
}

func (m *Map) buildGroup(n *Node, path string) *Group {
	g := &Group{
		Name:     n.Name,
		Path:     path,
		Elements: make(map[string]*Element),
		Groups:   make(map[string]*Group),
	}
	for _, child := range n.Children {
		childPath := child.Name
		if path != "" {
			childPath = path + "." + child.Name
		}
		if child.IsLeaf() {
			el := &Element{root: m, name: child.Name, path: childPath, locator: child.Locator}
			g.Elements[child.Name] = el
			m.leaves = append(m.leaves, el)
		} else {
			g.Groups[child.Name] = m.buildGroup(child, childPath)
		}
		g.order = append(g.order, child.Name)
	}
	return g
}

// Names returns the group's child names in document order.
func (g *Group) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Element resolves a dotted path such as "login.user".
func (m *Map) Element(path string) (*Element, error) {
	parts := strings.Split(path, ".")
	g := m.Group
	for _, p := range parts[:len(parts)-1] {
		next, ok := g.Groups[p]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPath, path)
		}
		g = next
	}
	el, ok := g.Elements[parts[len(parts)-1]]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	return el, nil
}

// MustElement is like Element but panics on unknown paths. It keeps
// chained calls readable in scripts whose map is fixed.
func (m *Map) MustElement(path string) *Element {
	el, err := m.Element(path)
	if err != nil {
		panic(err)
	}
	return el
}

// Walk calls fn for every element in document order.
func (m *Map) Walk(fn func(el *Element)) {
	for _, el := range m.leaves {
		fn(el)
	}
}

// Len returns the number of elements in the tree.
func (m *Map) Len() int {
	return len(m.leaves)
}
