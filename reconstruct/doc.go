// Package reconstruct replays a contract's steps into the document state a
// viewer sees, and publishes the viewer's own contributions as new steps.
//
// A Session moves through Loading, Decrypting and Merging to Ready:
//
//   - Loading fetches the contract from the ledger and the root payload from
//     the content store. Ledger failures are fatal and wrap
//     interfaces.ErrLedgerUnavailable.
//   - Decrypting opens the root payload, then fetches and opens every step
//     payload concurrently. A step that cannot be opened is recorded as a
//     StepFailure and skipped; network failures end the session.
//   - Merging applies the step overlays onto the root overlay in ledger order,
//     independent of the order in which fetches completed.
//
// The content store handed to the engine is used as is; wrap it with
// storage.NewRetryingBackend to retry transient fetch failures.
//
// Field visibility follows the owner encoded in each field name. In
// ViewSigning only the viewer's own fields are visible, and the unfilled ones
// are editable. In ViewReviewing every field is visible and read-only.
package reconstruct
