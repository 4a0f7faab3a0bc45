// Package policy maps a contract's encryption mode to the crypto used for its
// payloads and to the payload wire format.
//
// Engine.SealPayload and Engine.OpenPayload are the only places where the
// mode is dispatched on:
//
//	ModeNone           symmetric, fixed empty password
//	ModePassword       symmetric, password supplied by the caller
//	ModeAccessControl  per-payload key escrowed behind a signer predicate
//
// A payload is always opened with the mode recorded on its contract. A payload
// whose shape belongs to another mode fails with interfaces.ErrPayloadIntegrity
// instead of being decrypted with a different module.
//
// DecodePayload and EncodePayload convert between interfaces.Payload and the
// JSON stored on the content store:
//
//	{"fileStr": <string|object>, "xfdfStr": <string|object>, "meta": {"version": "1.0"}}
package policy
