package cryptoutils

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidAuthProof is returned when an auth proof signature does not recover
	// to the address it claims.
	ErrInvalidAuthProof = errors.New("invalid auth proof")

	// ErrAuthProofExpired is returned when an auth proof is older than allowed.
	ErrAuthProofExpired = errors.New("auth proof expired")
)

// PersonalSignDerivation identifies proofs produced with an EIP-191 personal_sign.
const PersonalSignDerivation = "web3.eth.personal.sign"

// authMessagePrefix is the human readable body the wallet is asked to sign.
// The signing time is appended in RFC 3339 form.
const authMessagePrefix = "I am signing in to pdftron-sign-app at "

// AuthProof proves control of a wallet address. It is the signature of a
// timestamped message, verified by recovering the signer's public key.
type AuthProof struct {
	Sig           string `json:"sig"`
	DerivedVia    string `json:"derivedVia"`
	SignedMessage string `json:"signedMessage"`
	Address       string `json:"address"`
}

// AuthMessage returns the message a wallet signs at the given time.
func AuthMessage(at time.Time) string {
	return authMessagePrefix + at.UTC().Format(time.RFC3339)
}

// SignAuthProof produces an auth proof with a local private key, mirroring what a
// wallet does for personal_sign.
func SignAuthProof(key *ecdsa.PrivateKey, at time.Time) (AuthProof, error) {
	message := AuthMessage(at)
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return AuthProof{}, fmt.Errorf("failed to sign auth message: %w", err)
	}
	// Wallets return the legacy recovery id.
	sig[crypto.RecoveryIDOffset] += 27

	return AuthProof{
		Sig:           hexutil.Encode(sig),
		DerivedVia:    PersonalSignDerivation,
		SignedMessage: message,
		Address:       crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

// VerifyAuthProof recovers the signer of the proof and checks it matches the
// claimed address. When maxAge is positive, proofs signed earlier than
// now-maxAge are rejected with ErrAuthProofExpired.
func VerifyAuthProof(proof AuthProof, maxAge time.Duration) (common.Address, error) {
	if proof.DerivedVia != PersonalSignDerivation {
		return common.Address{}, fmt.Errorf("%w: unsupported derivation %q", ErrInvalidAuthProof, proof.DerivedVia)
	}

	if !common.IsHexAddress(proof.Address) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", ErrInvalidAuthProof, proof.Address)
	}
	claimed := common.HexToAddress(proof.Address)

	sig, err := hexutil.Decode(proof.Sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: invalid signature encoding: %v", ErrInvalidAuthProof, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: invalid signature length %d", ErrInvalidAuthProof, len(sig))
	}

	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pubkey, err := crypto.SigToPub(accounts.TextHash([]byte(proof.SignedMessage)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidAuthProof, err)
	}

	recovered := crypto.PubkeyToAddress(*pubkey)
	if recovered != claimed {
		return common.Address{}, fmt.Errorf("%w: signed by %s, claims %s", ErrInvalidAuthProof, recovered.Hex(), claimed.Hex())
	}

	if maxAge > 0 {
		signedAt, err := authMessageTime(proof.SignedMessage)
		if err != nil {
			return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidAuthProof, err)
		}
		if time.Since(signedAt) > maxAge {
			return common.Address{}, fmt.Errorf("%w: signed at %s", ErrAuthProofExpired, signedAt.Format(time.RFC3339))
		}
	}

	return recovered, nil
}

func authMessageTime(message string) (time.Time, error) {
	if !strings.HasPrefix(message, authMessagePrefix) {
		return time.Time{}, errors.New("unrecognized auth message")
	}
	return time.Parse(time.RFC3339, strings.TrimPrefix(message, authMessagePrefix))
}
