package reconstruct

import (
	"errors"
	"fmt"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/overlay"
	"github.com/djvang/pdftron-sign-app/policy"
)

// ErrNothingToPublish is returned by Publish when no field was set.
var ErrNothingToPublish = errors.New("no pending field values to publish")

// ViewMode selects how fields are presented.
type ViewMode int

const (
	// ViewSigning shows only the viewer's own fields, editable while unfilled.
	ViewSigning ViewMode = iota
	// ViewReviewing shows every field read-only.
	ViewReviewing
)

func (m ViewMode) String() string {
	switch m {
	case ViewSigning:
		return "signing"
	case ViewReviewing:
		return "reviewing"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Viewer is the identity a session is reconstructed for, with the key
// material that identity holds.
type Viewer struct {
	Identity interfaces.Identity
	Mode     ViewMode
	Keys     policy.KeyMaterial
}

// State is the lifecycle state of a session.
type State int

const (
	StateLoading State = iota
	StateDecrypting
	StateMerging
	StateReady
	StateFailed
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateDecrypting:
		return "decrypting"
	case StateMerging:
		return "merging"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StepFailure records a step whose payload could not be replayed.
type StepFailure struct {
	Index  int
	StepID string
	Signer interfaces.Identity
	Err    error
}

func (f StepFailure) Error() string {
	return fmt.Sprintf("step %d (%s) by %s: %v", f.Index, f.StepID, f.Signer.Hex(), f.Err)
}

func (f StepFailure) Unwrap() error {
	return f.Err
}

// FieldView is a merged field as presented to the viewer.
type FieldView struct {
	Name  string
	Value string
	// Owner is set for fields whose name carries a signer tag.
	Owner    *interfaces.Identity
	Type     overlay.FieldType
	Visible  bool
	Editable bool
}

// Inbox sorts a participant's contracts by what they are waiting for.
type Inbox struct {
	// ToSign holds contracts where the participant is a pending signer.
	ToSign []*interfaces.Contract
	// Waiting holds contracts the participant signed or initiated that other
	// signers still have to sign.
	Waiting   []*interfaces.Contract
	Completed []*interfaces.Contract
}
