/*
Package dsl provides a fluent builder for declaring flowgraph flows in Go.

Steps are declared in order; their transitions, splits, joins, decorators and
mutators are attached with chained calls, and Build returns a *flow.Spec.

Example usage:

	spec, err := dsl.New("HelloFlow").
		Add("start").Foreach("letters", "shout").
		Add("shout").Go("gather").
		Add("gather").Join().Go("end").
		Add("end").
		Builder().Build()
*/
package dsl
