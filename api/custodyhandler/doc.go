// Package custodyhandler serves one key custody node over HTTP and provides
// the matching client.
//
// A node holds one share of every escrowed key. It checks the depositor's
// auth proof on escrow, and on release checks that the caller's proof
// recovers to an address satisfying the predicate the share was stored
// under. Client implements interfaces.CustodyNode, so custody.NewNetwork can
// combine remote nodes, local nodes, or both.
//
// Routes:
//
//	GET  /api/custody/ping
//	POST /api/custody/escrow
//	POST /api/custody/release
package custodyhandler
