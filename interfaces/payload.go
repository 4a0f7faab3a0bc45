package interfaces

// PayloadVersion is written into the meta block of every sealed payload.
const PayloadVersion = "1.0"

// AccessControlEnvelope is a blob sealed with a fresh symmetric key whose only copy
// is escrowed on the custody network behind AccessControlConditions.
type AccessControlEnvelope struct {
	EncryptedData []byte
	// EncryptedSymmetricKey is the hex handle of the escrowed key.
	EncryptedSymmetricKey string
	// AccessControlConditions is the predicate descriptor.
	AccessControlConditions string
}

// SealedPart is one encrypted half of a payload. Exactly one of CipherText and
// Envelope is set, depending on the contract's encryption mode.
type SealedPart struct {
	CipherText string
	Envelope   *AccessControlEnvelope
}

// IsEnvelope reports whether the part is access-control sealed.
func (s SealedPart) IsEnvelope() bool {
	return s.Envelope != nil
}

type PayloadMeta struct {
	Version string `json:"version"`
}

// Payload is the unit stored per contract root and per step: the encrypted PDF
// and the encrypted XFDF overlay, both sealed under the same mode.
type Payload struct {
	Mode    EncryptionMode
	File    SealedPart
	Overlay SealedPart
	Meta    PayloadMeta
}
