/*
Package observability turns wizard lifecycle events into logs and
Prometheus metrics.

Both are exposed as domain.LifecycleHooks so they can be merged and passed
to the wizard and the submission pipeline.
*/
package observability
