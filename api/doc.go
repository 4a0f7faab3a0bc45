/*
Package api holds the HTTP surface of the signing services.

Two services are exposed, each in its own subpackage with a chi handler and a
matching client:

  - ledgerhandler serves an interfaces.Ledger (contracts and their steps) and
    provides a client that implements interfaces.Ledger over HTTP.
  - custodyhandler serves a single interfaces.CustodyNode and provides a client
    that implements interfaces.CustodyNode, so a custody.Network can be built
    from remote nodes.

Errors cross the wire as plain-text bodies with a status code chosen by
StatusFor. Clients map status codes back to the sentinel errors of the
interfaces package, so callers can keep using errors.Is on either side.
*/
package api
