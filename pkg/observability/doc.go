/*
Package observability turns the engine lifecycle hooks into metrics and audit logs.

Metrics exposes Prometheus collectors fed by domain.LifecycleHooks; LogHooks
writes one structured record per event. Both can be combined with
domain.LifecycleHooks.Chain.
*/
package observability
