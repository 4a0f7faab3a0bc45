package overlay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/ethereum/go-ethereum/common"
)

// FieldType is the kind of input a field collects.
type FieldType string

const (
	FieldText      FieldType = "TEXT"
	FieldSignature FieldType = "SIGNATURE"
	FieldDate      FieldType = "DATE"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldSignature, FieldDate:
		return true
	default:
		return false
	}
}

// FieldTag is the structured form of a field name.
type FieldTag struct {
	Signer    interfaces.Identity
	Type      FieldType
	Timestamp time.Time
}

// Name returns the field name for the tag.
func (t FieldTag) Name() string {
	return NewFieldName(t.Signer, t.Type, t.Timestamp)
}

// NewFieldName builds a field name owned by signer.
func NewFieldName(signer interfaces.Identity, typ FieldType, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", interfaces.IdentityTag(signer), typ, at.UnixMilli())
}

// ParseFieldTag parses a field name produced by NewFieldName. The address
// segment is matched case-insensitively.
func ParseFieldTag(name string) (FieldTag, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return FieldTag{}, fmt.Errorf("field name %q: expected 3 segments, got %d", name, len(parts))
	}

	if !common.IsHexAddress(parts[0]) {
		return FieldTag{}, fmt.Errorf("field name %q: invalid signer address", name)
	}

	typ := FieldType(strings.ToUpper(parts[1]))
	if !typ.Valid() {
		return FieldTag{}, fmt.Errorf("field name %q: unknown field type %q", name, parts[1])
	}

	millis, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return FieldTag{}, fmt.Errorf("field name %q: invalid timestamp: %w", name, err)
	}

	return FieldTag{
		Signer:    common.HexToAddress(parts[0]),
		Type:      typ,
		Timestamp: time.UnixMilli(millis).UTC(),
	}, nil
}

// FieldOwner returns the signer encoded in the first segment of a field name.
// Untagged names such as "SignatureFormField 1" have no owner.
func FieldOwner(name string) (interfaces.Identity, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || !common.IsHexAddress(prefix) {
		return interfaces.Identity{}, false
	}
	return common.HexToAddress(prefix), true
}
