// Package storage provides content-addressed storage for encrypted contract
// payloads with pluggable backends.
//
// Every contract root and every signing step is a single JSON payload blob. The
// blob is stored under its content ID, a CIDv1 (raw codec, sha2-256), and
// the ledger only records that ID:
//
//   - File system storage for local development and testing
//   - S3-compatible storage for cloud deployments
//   - IPFS storage for decentralized content
//   - Vault storage for deployments that keep payloads next to their secrets
//   - Badger storage, embedded and optionally in memory
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/signd/payloads/
//   - s3://bucket-name/prefix/?region=us-west-2
//   - ipfs://ipfs.example.com:5001/?timeout=30s
//   - vault://token@vault.example.com:8200/secret/contracts
//   - badger:///var/lib/signd/badger or badger://memory
//
// Several URIs combine into a MultiStorageBackend that writes to every available
// backend and reads from the first one holding the content.
//
// # Integrity
//
// Backends that compute content IDs locally verify fetched data against the
// requested ID and fail with interfaces.ErrPayloadIntegrity on mismatch.
//
// # Retries
//
// RetryingBackend wraps any backend and retries transient failures with
// exponential backoff. Missing content is reported immediately.
package storage
