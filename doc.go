/*
Package flowgraph is a step graph engine for data and automation workflows.

A flow is a graph of steps. Each step runs as one or more tasks, stores its
results as artifacts, and picks the steps that follow it by calling Next. The
engine validates every transition against the graph, fans out foreach and
parallel splits, and gives join steps the branches that reached them.

# Concept

The flow definition (steps, parameters, configs, decorators) is declared once
with the dsl package and turned into a graph. Step bodies are plain Go
functions registered on a Flow. Everything a task needs to run lives in the
Datastore: a task reads the artifacts of the tasks before it and writes its
own, so a run can be driven task by task from separate processes.

# Key Features

  - Checked transitions: Next rejects targets the graph does not declare.
  - Foreach and parallel splits, with the foreach stack available to every nested task.
  - Join merges that pass down unambiguous artifacts and report conflicts.
  - Config mutators that rewrite the flow from resolved configuration before a run.
  - Pluggable storage: memory, local files, Redis or SQLite.

# Usage

	package main

	import (
		"context"

		"github.com/aretw0/flowgraph"
		"github.com/aretw0/flowgraph/pkg/cli"
		"github.com/aretw0/flowgraph/pkg/dsl"
	)

	func main() {
		spec := dsl.New("HelloFlow").
			Add("start").Go("end").
			Add("end").
			Builder().MustBuild()

		f := flowgraph.New(spec).
			Handle("start", func(ctx context.Context, t *flowgraph.Task) error {
				t.Set("greeting", "hello")
				return t.Next(ctx, "end")
			}).
			Handle("end", func(ctx context.Context, t *flowgraph.Task) error {
				return nil
			})

		// run, step, graph, check, serve...
		cli.Main(f)
	}

Programs that embed the engine can drive a run directly with NewLocalRunner,
or one task at a time with Flow.RunTask.
*/
package flowgraph
