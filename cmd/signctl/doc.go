// Package main (cmd/signctl) is the command line client for contract signing.
//
// It reconstructs contracts locally: the ledger and content store are reached
// through the configured backends, payloads are decrypted with the caller's
// password or wallet key, and new steps are sealed before upload.
//
// Example:
//
//	signctl --key=$KEY --ledger=remote --ledger-url=http://signd:8080 \
//	    --storage=ipfs://ipfs:5001 --custody-node=http://signd:8080 \
//	    create --name=lease --mode=access-control --signer=0xabc... \
//	    --field=0xabc...:SIGNATURE --file=lease.pdf
//
//	signctl --key=$KEY ... sign <contract-id> --set=<field>=<value>
package main
