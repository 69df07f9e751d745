/*
Package ports defines the driven ports (interfaces) for the flowgraph engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various artifact backends and schedulers.

# Key Interfaces

  - Graph: Read-only node lookup over a derived flow graph.
  - Datastore: Opens per-task ArtifactStores (memory, file, Redis, SQLite).
  - ArtifactStore: Enumerates (name, fingerprint) pairs and copies artifacts between tasks.
  - DistributedLocker: Guards task attempts across workers.
*/
package ports
