// Package interfaces defines core interfaces and types for the contract signing
// system, separating interface definitions from implementations.
//
// # Ledger Interfaces
//
// Ledger: Records contracts, their declared signers and the append-only sequence
// of signing steps. Each step points at an encrypted payload by content ID.
//
// # Storage Interfaces
//
// StorageBackend: Provides content-addressed storage for encrypted payloads
// across multiple backend types (file, S3, IPFS, Vault, Badger).
//
// StorageBackendFactory: Creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Custody Interfaces
//
// CustodyNetwork: Escrows symmetric keys behind an access predicate and releases
// them only to callers whose auth proof satisfies it.
//
// CustodyNode: A single key custody node holding one share of each escrowed key.
//
// # Core Types
//
//   - ContentID: CIDv1 (raw, sha2-256) content address of a stored payload
//   - Identity: Ethereum address of a participant
//   - Predicate: Ordered access conditions joined by boolean operators
//   - Payload: Encrypted document and overlay of one signing step
package interfaces
