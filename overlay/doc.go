// Package overlay handles the XFDF annotation overlays that signers publish on
// top of a contract's base document.
//
// An overlay carries form fields (name and value), annotation elements and
// viewer metadata. Field names embed their owner:
//
//	<signerAddressLowercase>_<TEXT|SIGNATURE|DATE>_<epochMillis>
//
// ParseFieldTag and NewFieldName convert between names and FieldTag values.
//
// Merge replays overlays additively: a later layer may fill an empty field or
// add new fields and annotations, but never change what an earlier layer
// contributed, and never touch fields owned by another signer. Rejected
// contributions are reported as FieldCollision values matching
// interfaces.ErrFieldCollision.
//
// Annotation elements and the pdf-info and pages sections are carried through
// verbatim; only field values are interpreted.
package overlay
