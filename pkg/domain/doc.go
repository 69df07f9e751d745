/*
Package domain contains the core domain models of the flowgraph engine.

It defines the vocabulary shared by every other package: step nodes and their
types, validated transitions, foreach frames, artifact records and the error
taxonomy. This package is kept pure and free of external dependencies like I/O
or persistence, following Hexagonal Architecture principles.

# Key Entities

  - StepNode: A named step of the graph with its type and ordered out_funcs.
  - Transition: The single validated outcome of a step body's next() call.
  - ForeachStack: The frames of dynamic fan-out enclosing a task.
  - UnboundedInput: A foreach source whose width is only known at runtime (ParallelUBF).
*/
package domain
