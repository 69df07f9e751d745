package flowgraph

// Version is the release of the module. Overridden at build time with
// -ldflags "-X github.com/aretw0/flowgraph.Version=...".
var Version = "0.4.0"
