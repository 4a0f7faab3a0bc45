package interfaces

import (
	"fmt"
	"strings"
	"time"

	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/ethereum/go-ethereum/common"
)

type AuthProof = cryptoutils.AuthProof

// EncryptionMode selects how every payload of a contract is encrypted.
// It is fixed when the contract is created.
type EncryptionMode uint8

const (
	// ModeNone encrypts with the well-known empty password.
	ModeNone EncryptionMode = 0
	// ModePassword encrypts with a password shared out of band between participants.
	ModePassword EncryptionMode = 1
	// ModeAccessControl escrows a per-payload key behind a signer predicate.
	ModeAccessControl EncryptionMode = 2
)

// Valid reports whether the mode is one of the known modes.
func (m EncryptionMode) Valid() bool {
	return m <= ModeAccessControl
}

// String returns mode name.
func (m EncryptionMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModePassword:
		return "password"
	case ModeAccessControl:
		return "access-control"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ParseEncryptionMode parses either the numeric or the named form of a mode.
func ParseEncryptionMode(s string) (EncryptionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "none":
		return ModeNone, nil
	case "1", "password":
		return ModePassword, nil
	case "2", "access-control", "accesscontrol":
		return ModeAccessControl, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// Identity is the wallet address of a participant.
type Identity = common.Address

// ParseIdentity accepts a hex address (with or without 0x prefix, any case) or a
// did:pkh:eip155:<chain>:<address> DID.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "did:pkh:") {
		parts := strings.Split(s, ":")
		if len(parts) != 5 || parts[2] != "eip155" {
			return Identity{}, fmt.Errorf("unsupported DID %q", s)
		}
		s = parts[4]
	}

	if !common.IsHexAddress(s) {
		return Identity{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// IdentityTag returns the lowercase hex form used in field names and comparisons.
func IdentityTag(id Identity) string {
	return strings.ToLower(id.Hex())
}

// Signer is a party expected to sign a contract.
type Signer struct {
	Address Identity `json:"address"`
}

// Step is one signer's published contribution to a contract. Steps are immutable
// and their Index reflects ledger insertion order.
type Step struct {
	ID           string    `json:"id"`
	ContractID   string    `json:"contractId"`
	Index        int       `json:"index"`
	Signer       Identity  `json:"signer"`
	ContractHash ContentID `json:"contractHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Contract is the signing envelope: the document, its participants and the
// ordered steps published so far.
type Contract struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	EncryptionMode EncryptionMode `json:"encryptionMode"`
	ContractHash   ContentID      `json:"contractHash"`
	Initiator      Identity       `json:"initiator"`
	Signers        []Signer       `json:"signers"`
	Steps          []Step         `json:"steps"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// SignerAddresses returns the declared signers in order.
func (c *Contract) SignerAddresses() []Identity {
	addrs := make([]Identity, 0, len(c.Signers))
	for _, s := range c.Signers {
		addrs = append(addrs, s.Address)
	}
	return addrs
}

// HasSigner reports whether addr is a declared signer.
func (c *Contract) HasSigner(addr Identity) bool {
	for _, s := range c.Signers {
		if s.Address == addr {
			return true
		}
	}
	return false
}

// IsParticipant reports whether addr initiated the contract or is a signer.
func (c *Contract) IsParticipant(addr Identity) bool {
	return c.Initiator == addr || c.HasSigner(addr)
}

// SignedBy reports whether addr has published at least one step.
func (c *Contract) SignedBy(addr Identity) bool {
	for _, step := range c.Steps {
		if step.Signer == addr {
			return true
		}
	}
	return false
}

// PendingSigners returns declared signers without a step, in declaration order.
func (c *Contract) PendingSigners() []Identity {
	var pending []Identity
	for _, s := range c.Signers {
		if !c.SignedBy(s.Address) {
			pending = append(pending, s.Address)
		}
	}
	return pending
}

// FullySigned reports whether every declared signer has a matching step.
func (c *Contract) FullySigned() bool {
	return len(c.Signers) > 0 && len(c.PendingSigners()) == 0
}

// ContractDraft carries the fields of a contract before the ledger assigns an id.
type ContractDraft struct {
	Name           string         `json:"name"`
	EncryptionMode EncryptionMode `json:"encryptionMode"`
	ContractHash   ContentID      `json:"contractHash"`
	Initiator      Identity       `json:"initiator"`
	Signers        []Signer       `json:"signers"`
}

// Validate checks the draft can be recorded.
func (d *ContractDraft) Validate() error {
	if !d.EncryptionMode.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedMode, d.EncryptionMode)
	}
	if !d.ContractHash.Defined() {
		return fmt.Errorf("%w: contract hash is required", ErrInvalidContract)
	}
	if d.Initiator == (Identity{}) {
		return fmt.Errorf("%w: initiator is required", ErrInvalidContract)
	}
	if len(d.Signers) == 0 {
		return fmt.Errorf("%w: at least one signer is required", ErrInvalidContract)
	}

	seen := make(map[Identity]struct{}, len(d.Signers))
	for _, s := range d.Signers {
		if s.Address == (Identity{}) {
			return fmt.Errorf("%w: signer address is required", ErrInvalidContract)
		}
		if _, dup := seen[s.Address]; dup {
			return fmt.Errorf("%w: duplicate signer %s", ErrInvalidContract, s.Address.Hex())
		}
		seen[s.Address] = struct{}{}
	}
	return nil
}

// ContractFilter narrows ListContracts. The zero value lists everything.
type ContractFilter struct {
	// Participant restricts results to contracts initiated or signed by this identity.
	Participant *Identity
}

// Matches reports whether the contract passes the filter.
func (f ContractFilter) Matches(c *Contract) bool {
	if f.Participant != nil && !c.IsParticipant(*f.Participant) {
		return false
	}
	return true
}
