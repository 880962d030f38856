// Package test holds helpers shared by the tests of the module.
package test

import (
	"fmt"
	"slices"
)

// Aspect is one dimension of a test matrix, for example the kind of identifier of a response, with all the values
// it can take.
type Aspect []Value

// Value is one value of an [Aspect].
type Value struct {
	key  string     // Key of the aspect in the generated Case.
	name string     // Part of the generated case name.
	make func() any // Returns the value, called once per generated case.
}

// Case is one generated combination, a value per aspect key.
type Case map[string]any

// NewAspect returns the aspect indexed by key in the generated cases, see [NewValue] and [CreateValue].
func NewAspect(key string, values ...Value) Aspect {
	aspect := slices.Clone(values)
	for i := range aspect {
		aspect[i].key = key
	}

	return aspect
}

// NewValue returns a value shared by every generated case. Use [CreateValue] for values that must not be shared,
// like channels.
func NewValue(name string, value any) Value {
	return Value{name: name, make: func() any { return value }}
}

// CreateValue returns a value built by gen for each generated case.
func CreateValue(name string, gen func() any) Value {
	return Value{name: name, make: gen}
}

// GenTestCases returns every combination of the values of aspects, keyed by the names of the values joined with
// "_". Without aspects it returns one unnamed empty case.
func GenTestCases(aspects ...Aspect) map[string]Case {
	cases := make(map[string]Case)

	combine("", nil, cases, aspects)

	return cases
}

func combine(name string, values []Value, cases map[string]Case, aspects []Aspect) {
	if len(aspects) == 0 {
		c := make(Case, len(values))
		for _, v := range values {
			c[v.key] = v.make()
		}

		cases[name] = c

		return
	}

	for _, v := range aspects[0] {
		next := v.name
		if name != "" {
			next = name + "_" + v.name
		}

		combine(next, append(slices.Clip(values), v), cases, aspects[1:])
	}
}

// Get returns the value of key in c as a T. It panics if the value is missing or of another type, which is a bug in
// the test itself.
func Get[T any](c Case, key string) T {
	v, ok := c[key].(T)
	if !ok {
		panic(fmt.Sprintf("test case has %T for %q", c[key], key))
	}

	return v
}
