package interfaces

import (
	"errors"

	"github.com/djvang/pdftron-sign-app/cryptoutils"
)

// ErrDecryption is returned when a ciphertext cannot be opened with the supplied
// key material or is malformed.
var ErrDecryption = cryptoutils.ErrDecryption

var (
	// ErrAccessDenied is returned when the custody network refuses to release a key
	// because the caller's identity does not satisfy the predicate. It is terminal.
	ErrAccessDenied = errors.New("access denied")

	// ErrCustodyUnavailable is returned when not enough custody nodes could be
	// reached to complete an operation. It is transient.
	ErrCustodyUnavailable = errors.New("key custody network unavailable")

	// ErrPayloadIntegrity is returned when a stored payload does not have the
	// shape required by the contract's encryption mode.
	ErrPayloadIntegrity = errors.New("payload integrity violation")

	// ErrFieldCollision reports that a step tried to overwrite an existing field
	// or annotation. The step's other contributions still apply.
	ErrFieldCollision = errors.New("field collision")

	// ErrLedgerUnavailable is returned when the contract ledger cannot be reached.
	ErrLedgerUnavailable = errors.New("contract ledger unavailable")

	ErrUnsupportedMode = errors.New("unsupported encryption mode")

	// ErrInvalidPredicate is returned for an empty or malformed access predicate.
	ErrInvalidPredicate = errors.New("invalid access predicate")

	ErrContractNotFound = errors.New("contract not found")

	// ErrInvalidContract is returned for contract drafts the ledger cannot record.
	ErrInvalidContract = errors.New("invalid contract")

	// ErrUnknownSigner is returned when a step is submitted by an identity that is
	// not a declared signer of the contract.
	ErrUnknownSigner = errors.New("identity is not a signer of the contract")

	// ErrMissingKeyMaterial is returned when the mode requires a password or auth
	// proof that was not supplied.
	ErrMissingKeyMaterial = errors.New("missing key material")

	ErrSessionAbandoned  = errors.New("session abandoned")
	ErrPublishInProgress = errors.New("publish already in progress")

	// ErrNotEditable is returned when a viewer tries to set a field it does not own
	// or that is read-only in the current view mode.
	ErrNotEditable = errors.New("field is not editable")
)
