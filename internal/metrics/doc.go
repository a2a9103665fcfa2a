// Package metrics holds the coordinator's Prometheus collectors.
package metrics
