// Package custody implements a threshold key custody network.
//
// Every escrowed key is split with Shamir's Secret Sharing into one share per
// custody node. A node stores its share bound to the hash of the access predicate
// and only returns it to callers whose wallet auth proof recovers to an address
// satisfying that predicate. Any threshold-sized subset of shares reconstructs
// the key, so the network tolerates N-T unavailable nodes, while no node alone
// learns anything about the key.
//
// # Components
//
//   - Network: client side coordinator, implements interfaces.CustodyNetwork
//   - LocalNode: in-process share store enforcing predicates, implements interfaces.CustodyNode
//   - ResolveNodeURLs: discovery of remote custody nodes via DNS SRV records
//
// Remote nodes are reached through the HTTP client in api/custodyhandler, which
// serves a LocalNode over HTTP.
//
// # Usage Example
//
//	network, err := custody.NewNetwork(nodes, 2, logger)
//	if err != nil {
//		return err
//	}
//	network.Connect(ctx)
//	<-network.Ready()
//
//	handle, err := network.EscrowKey(ctx, key, predicate, proof)
package custody
