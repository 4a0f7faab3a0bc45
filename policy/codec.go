package policy

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/djvang/pdftron-sign-app/interfaces"
)

// supportedMajorVersion is the payload meta major version this package reads.
const supportedMajorVersion = "1"

type wirePayload struct {
	FileStr json.RawMessage        `json:"fileStr"`
	XfdfStr json.RawMessage        `json:"xfdfStr"`
	Meta    interfaces.PayloadMeta `json:"meta"`
}

type wireFileEnvelope struct {
	EncryptedFile           string `json:"encryptedFile"`
	EncryptedSymmetricKey   string `json:"encryptedSymmetricKey"`
	AccessControlConditions string `json:"accessControlConditions"`
}

type wireStringEnvelope struct {
	EncryptedString         string `json:"encryptedString"`
	EncryptedSymmetricKey   string `json:"encryptedSymmetricKey"`
	AccessControlConditions string `json:"accessControlConditions"`
}

// EncodePayload produces the JSON wire form of p.
func EncodePayload(p *interfaces.Payload) ([]byte, error) {
	if err := checkShape(p.Mode, p); err != nil {
		return nil, err
	}

	wire := wirePayload{Meta: p.Meta}
	if wire.Meta.Version == "" {
		wire.Meta.Version = interfaces.PayloadVersion
	}

	var err error
	if p.Mode == interfaces.ModeAccessControl {
		wire.FileStr, err = json.Marshal(wireFileEnvelope{
			EncryptedFile:           base64.StdEncoding.EncodeToString(p.File.Envelope.EncryptedData),
			EncryptedSymmetricKey:   p.File.Envelope.EncryptedSymmetricKey,
			AccessControlConditions: p.File.Envelope.AccessControlConditions,
		})
		if err != nil {
			return nil, err
		}
		wire.XfdfStr, err = json.Marshal(wireStringEnvelope{
			EncryptedString:         base64.StdEncoding.EncodeToString(p.Overlay.Envelope.EncryptedData),
			EncryptedSymmetricKey:   p.Overlay.Envelope.EncryptedSymmetricKey,
			AccessControlConditions: p.Overlay.Envelope.AccessControlConditions,
		})
		if err != nil {
			return nil, err
		}
	} else {
		if wire.FileStr, err = json.Marshal(p.File.CipherText); err != nil {
			return nil, err
		}
		if wire.XfdfStr, err = json.Marshal(p.Overlay.CipherText); err != nil {
			return nil, err
		}
	}

	return json.Marshal(wire)
}

// DecodePayload parses stored JSON as a payload of the given mode. Data shaped
// for another mode, missing parts and unsupported meta versions wrap
// interfaces.ErrPayloadIntegrity.
func DecodePayload(mode interfaces.EncryptionMode, data []byte) (*interfaces.Payload, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", interfaces.ErrUnsupportedMode, mode)
	}

	var wire wirePayload
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", interfaces.ErrPayloadIntegrity, err)
	}

	major, _, _ := strings.Cut(wire.Meta.Version, ".")
	if major != supportedMajorVersion {
		return nil, fmt.Errorf("%w: unsupported payload version %q", interfaces.ErrPayloadIntegrity, wire.Meta.Version)
	}

	p := &interfaces.Payload{Mode: mode, Meta: wire.Meta}

	if mode == interfaces.ModeAccessControl {
		var file wireFileEnvelope
		if err := decodeObject(wire.FileStr, "fileStr", &file); err != nil {
			return nil, err
		}
		var overlay wireStringEnvelope
		if err := decodeObject(wire.XfdfStr, "xfdfStr", &overlay); err != nil {
			return nil, err
		}

		fileEnv, err := newEnvelope("fileStr", file.EncryptedFile, file.EncryptedSymmetricKey, file.AccessControlConditions)
		if err != nil {
			return nil, err
		}
		overlayEnv, err := newEnvelope("xfdfStr", overlay.EncryptedString, overlay.EncryptedSymmetricKey, overlay.AccessControlConditions)
		if err != nil {
			return nil, err
		}
		p.File.Envelope = fileEnv
		p.Overlay.Envelope = overlayEnv
		return p, nil
	}

	var err error
	if p.File.CipherText, err = decodeString(wire.FileStr, "fileStr"); err != nil {
		return nil, err
	}
	if p.Overlay.CipherText, err = decodeString(wire.XfdfStr, "xfdfStr"); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeString(raw json.RawMessage, part string) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", fmt.Errorf("%w: %s must be a string", interfaces.ErrPayloadIntegrity, part)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s: %v", interfaces.ErrPayloadIntegrity, part, err)
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s is empty", interfaces.ErrPayloadIntegrity, part)
	}
	return s, nil
}

func decodeObject(raw json.RawMessage, part string, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return fmt.Errorf("%w: %s must be an object", interfaces.ErrPayloadIntegrity, part)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", interfaces.ErrPayloadIntegrity, part, err)
	}
	return nil
}

func newEnvelope(part, data, handle, conditions string) (*interfaces.AccessControlEnvelope, error) {
	if data == "" || handle == "" || conditions == "" {
		return nil, fmt.Errorf("%w: %s envelope is incomplete", interfaces.ErrPayloadIntegrity, part)
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid encoding: %v", interfaces.ErrPayloadIntegrity, part, err)
	}
	return &interfaces.AccessControlEnvelope{
		EncryptedData:           decoded,
		EncryptedSymmetricKey:   handle,
		AccessControlConditions: conditions,
	}, nil
}

// checkShape verifies that both parts of p are sealed the way mode requires.
func checkShape(mode interfaces.EncryptionMode, p *interfaces.Payload) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", interfaces.ErrUnsupportedMode, mode)
	}
	if p.Mode != mode {
		return fmt.Errorf("%w: payload sealed as %s, contract mode is %s", interfaces.ErrPayloadIntegrity, p.Mode, mode)
	}

	wantEnvelope := mode == interfaces.ModeAccessControl
	for _, part := range []struct {
		name string
		part interfaces.SealedPart
	}{{"fileStr", p.File}, {"xfdfStr", p.Overlay}} {
		if part.part.IsEnvelope() != wantEnvelope {
			return fmt.Errorf("%w: %s is not sealed for %s", interfaces.ErrPayloadIntegrity, part.name, mode)
		}
		if !wantEnvelope && part.part.CipherText == "" {
			return fmt.Errorf("%w: %s is empty", interfaces.ErrPayloadIntegrity, part.name)
		}
	}
	return nil
}
