// Package main (cmd/signd) runs the signing backend.
//
// signd hosts the contract ledger API and, unless disabled, one custody node
// holding key shares for access-controlled contracts. Several signd instances
// with custody enabled form a custody network for signctl and other clients.
//
// Configuration comes from an optional YAML file (--config) with flags taking
// precedence. The server drains on SIGINT/SIGTERM and exposes livez, readyz and
// Prometheus metrics on a separate address.
//
// Example:
//
//	signd --ledger=postgres --ledger-dsn=postgres://sign@localhost/sign \
//	    --listen-addr=0.0.0.0:8080 --log-json
package main
