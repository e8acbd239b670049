// Package metric provides Prometheus metrics for minikv.
//
// Metrics exposed (namespace "minikv"):
//
//   - connections_accepted_total, connections_rejected_total
//   - connections_active
//   - connection_errors_total{kind}
//   - commands_total{command}
//   - command_duration_seconds{command}
//   - store_keys{shard}, collected on scrape
//
// Recording methods are safe on a nil *Registry, so components can be
// built without metrics.
package metric
