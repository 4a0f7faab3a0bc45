// Package ledgerhandler serves a contract ledger over HTTP and provides the
// matching client.
//
// Routes:
//
//	POST /api/contracts                  record a contract draft
//	GET  /api/contracts?participant=0x…  list contracts, newest first
//	GET  /api/contracts/{id}             fetch a contract with its ordered steps
//	POST /api/contracts/{id}/steps       append a step
//
// Client implements interfaces.Ledger, so a reconstruct.Engine can run
// against a remote ledger the same way it runs against an in-process one.
package ledgerhandler
