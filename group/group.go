// Package group collects method handlers under namespaces and registers them all at once.
//
// Registration errors are gathered and returned together by [Group.RegisterTo], so a set of methods is declared
// without checking an error after every handler.
package group

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/kytnacode/go-jrpcwire"
)

// DefaultSeparator joins a namespace and a method name, see [Group.SetSeparator].
const DefaultSeparator = "."

// Group is a set of methods waiting to be registered. Namespaces are added with [Group.Use]:
//
//	var g group.Group
//
//	g.AddMethod("echo", echo)
//
//	g.Use("math", func(g *group.Group) {
//	    g.AddMethod("add", add) // Registered as "math.add".
//	    g.AddMethod("div", div) // Registered as "math.div".
//	})
//
//	if err := g.RegisterTo(server); err != nil {
//	    log.Fatal(err)
//	}
//
// Implements the [jrpc.Register] interface. The zero value is ready to use. Not safe for concurrent use.
type Group struct {
	handlers map[string]any
	sep      string
}

func (g *Group) init() {
	if g.handlers != nil {
		return
	}

	g.handlers = make(map[string]any)

	if g.sep == "" {
		g.sep = DefaultSeparator
	}
}

// SetSeparator sets the separator used by g and, unless they set their own, by the namespaces added afterwards.
func (g *Group) SetSeparator(sep string) {
	g.init()

	g.sep = sep
}

// Register adds a method to g. Implements the [jrpc.Register] interface. The handler is checked by
// [Group.RegisterTo], so Register never fails.
func (g *Group) Register(method string, handler any) error {
	g.AddMethod(method, handler)

	return nil
}

// AddMethod adds a method to g, replacing any handler previously added under the same name.
func (g *Group) AddMethod(method string, handler any) {
	g.init()

	g.handlers[method] = handler
}

// Use adds the methods defined by useG under prefix. Methods are named prefix, the separator and the method name;
// an empty prefix adds them as they are.
func (g *Group) Use(prefix string, useG func(sub *Group)) {
	g.init()

	sub := &Group{sep: g.sep}
	sub.init()

	useG(sub)

	pre := ""
	if prefix != "" {
		pre = prefix + sub.sep
	}

	for method, handler := range sub.handlers {
		g.handlers[pre+method] = handler
	}
}

// Methods returns the full names of the methods of g, sorted.
func (g *Group) Methods() []string {
	return slices.Sorted(maps.Keys(g.handlers))
}

// RegisterTo registers every method of g to r in name order. It goes on after a failure and returns all of them
// joined, or nil.
func (g *Group) RegisterTo(r jrpc.Register) error {
	var errs []error

	for _, method := range g.Methods() {
		if err := r.Register(method, g.handlers[method]); err != nil {
			errs = append(errs, fmt.Errorf("group: %w", err))
		}
	}

	return errors.Join(errs...)
}
