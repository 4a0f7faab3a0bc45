// Package ledger provides implementations of interfaces.Ledger, the
// append-only record of contracts and the signing steps published against them.
//
// Two implementations are available:
//
//   - MemoryLedger keeps everything in process memory. It is used by tests and
//     by single-process deployments.
//   - GormLedger persists contracts, signers and steps in Postgres through gorm.
//     Step indices are assigned inside a transaction that locks the contract row,
//     so concurrent appends from different signers are serialized per contract.
//
// A remote ledger served by api/ledgerhandler is reachable through
// ledgerhandler.Client, which satisfies the same interface.
//
// MockLedger is a testify mock for unit tests of components that depend on a
// ledger.
package ledger
