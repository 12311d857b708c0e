// Package infra holds the adapters behind the core interfaces: simulation
// stores, metrics sinks, the MQTT publisher, Sentry monitoring and the
// zerolog logger. Core packages never import infra; adapters register
// themselves with the core factories from init.
package infra
