package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/overlay"
	"github.com/djvang/pdftron-sign-app/policy"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Session is one viewer's reconstruction of a contract.
type Session struct {
	engine     *Engine
	contractID string
	viewer     Viewer
	log        *slog.Logger

	loadStarted atomic.Bool
	abandoned   atomic.Bool
	publishing  sync.Mutex

	mu         sync.RWMutex
	state      State
	err        error
	contract   *interfaces.Contract
	file       []byte
	merged     *overlay.Document
	failures   []StepFailure
	collisions []overlay.FieldCollision
	pending    map[string]string
}

type stepResult struct {
	doc *overlay.Document
	err error
}

// Load runs the session from Loading to Ready. It may be called once.
//
// If Abandon is called while Load is running, the results of in-flight
// requests are discarded once they complete and Load returns
// ErrSessionAbandoned.
func (s *Session) Load(ctx context.Context) error {
	if !s.loadStarted.CompareAndSwap(false, true) {
		return errors.New("session load already started")
	}

	s.log.Debug("loading contract")
	contract, err := s.engine.ledger.GetContract(ctx, s.contractID)
	if err != nil {
		return s.fail(ledgerError("load contract", err))
	}
	slices.SortStableFunc(contract.Steps, func(a, b interfaces.Step) int {
		return a.Index - b.Index
	})

	rootData, err := s.engine.store.Fetch(ctx, contract.ContractHash)
	if err != nil {
		return s.fail(fmt.Errorf("failed to fetch root payload %s: %w", contract.ContractHash, err))
	}

	if err := s.transition(StateDecrypting); err != nil {
		return err
	}

	rootFile, rootDoc, err := s.open(ctx, contract.EncryptionMode, rootData)
	if err != nil {
		return s.fail(fmt.Errorf("failed to open root payload: %w", err))
	}

	results, err := s.replaySteps(ctx, contract)
	if err != nil {
		return s.fail(err)
	}

	if err := s.transition(StateMerging); err != nil {
		return err
	}

	var (
		layers     []overlay.Layer
		layerIndex []int
		failures   []StepFailure
	)
	for i, step := range contract.Steps {
		if results[i].err != nil {
			failure := StepFailure{Index: step.Index, StepID: step.ID, Signer: step.Signer, Err: results[i].err}
			failures = append(failures, failure)
			s.engine.metrics.StepFailed(failureReason(failure.Err))
			s.log.Warn("skipping step", slog.Int("index", step.Index), slog.String("stepID", step.ID), "err", failure.Err)
			continue
		}
		layers = append(layers, overlay.Layer{Author: step.Signer, Doc: results[i].doc})
		layerIndex = append(layerIndex, step.Index)
	}

	merged, collisions := overlay.Merge(rootDoc, layers)
	for i := range collisions {
		collisions[i].Layer = layerIndex[collisions[i].Layer]
	}
	s.reportCollisions(collisions)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned.Load() {
		s.state = StateAbandoned
		return interfaces.ErrSessionAbandoned
	}
	s.contract = contract
	s.file = rootFile
	s.merged = merged
	s.failures = failures
	s.collisions = collisions
	s.state = StateReady

	s.log.Info("contract reconstructed",
		slog.Int("steps", len(contract.Steps)),
		slog.Int("failedSteps", len(failures)),
		slog.Int("collisions", len(collisions)))
	return nil
}

// replaySteps fetches and opens every step concurrently. Results are indexed
// like contract.Steps. Failures local to one payload are returned in the
// result; network failures abort the replay.
func (s *Session) replaySteps(ctx context.Context, contract *interfaces.Contract) ([]stepResult, error) {
	results := make([]stepResult, len(contract.Steps))

	g, gctx := errgroup.WithContext(ctx)
	if s.engine.FetchConcurrency > 0 {
		g.SetLimit(s.engine.FetchConcurrency)
	}

	for i, step := range contract.Steps {
		g.Go(func() error {
			data, err := s.engine.store.Fetch(gctx, step.ContractHash)
			if err != nil {
				if isSessionFatal(err) {
					return fmt.Errorf("failed to fetch step %d: %w", step.Index, err)
				}
				results[i].err = err
				return nil
			}

			_, doc, err := s.open(gctx, contract.EncryptionMode, data)
			if err != nil {
				if isSessionFatal(err) {
					return fmt.Errorf("failed to open step %d: %w", step.Index, err)
				}
				results[i].err = err
				return nil
			}

			results[i].doc = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Session) open(ctx context.Context, mode interfaces.EncryptionMode, data []byte) ([]byte, *overlay.Document, error) {
	opened, err := s.engine.policy.OpenStored(ctx, mode, data, s.viewer.Keys)
	if err != nil {
		return nil, nil, err
	}
	doc, err := overlay.Parse(opened.Overlay)
	if err != nil {
		return nil, nil, err
	}
	return opened.File, doc, nil
}

func (s *Session) transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned.Load() {
		s.state = StateAbandoned
		return interfaces.ErrSessionAbandoned
	}
	s.log.Debug("session state", slog.String("from", s.state.String()), slog.String("to", next.String()))
	s.state = next
	return nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned.Load() {
		s.state = StateAbandoned
		return interfaces.ErrSessionAbandoned
	}
	s.state = StateFailed
	s.err = err
	s.log.Error("session failed", "err", err)
	return err
}

func (s *Session) reportCollisions(collisions []overlay.FieldCollision) {
	s.engine.metrics.FieldCollisions(len(collisions))
	for _, c := range collisions {
		s.log.Warn("ignored overlay contribution",
			slog.Int("step", c.Layer),
			slog.String("author", interfaces.IdentityTag(c.Author)),
			slog.String("name", c.Name),
			slog.String("reason", c.Reason))
	}
}

// Abandon discards the session. A running Load returns ErrSessionAbandoned
// once its in-flight requests complete.
func (s *Session) Abandon() {
	s.abandoned.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady || s.state == StateFailed {
		s.state = StateAbandoned
	}
	s.log.Debug("session abandoned")
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that failed the session.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Contract returns the contract as loaded, including steps published through
// this session.
func (s *Session) Contract() *interfaces.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.contract == nil {
		return nil
	}
	c := *s.contract
	c.Signers = slices.Clone(s.contract.Signers)
	c.Steps = slices.Clone(s.contract.Steps)
	return &c
}

// File returns the decrypted base document.
func (s *Session) File() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file
}

func (s *Session) Failures() []StepFailure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.failures)
}

func (s *Session) Collisions() []overlay.FieldCollision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.collisions)
}

// Fields returns every merged field with its visibility for the viewer.
// Pending values set with SetField are reflected.
func (s *Session) Fields() []FieldView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.merged == nil {
		return nil
	}

	views := make([]FieldView, 0, len(s.merged.Fields))
	for _, f := range s.merged.Fields {
		views = append(views, s.fieldView(f))
	}
	return views
}

// Field returns the view of a single field.
func (s *Session) Field(name string) (FieldView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.merged == nil {
		return FieldView{}, false
	}
	f, ok := s.merged.Field(name)
	if !ok {
		return FieldView{}, false
	}
	return s.fieldView(f), true
}

func (s *Session) fieldView(f overlay.Field) FieldView {
	view := FieldView{Name: f.Name, Value: f.Value}
	if pending, ok := s.pending[f.Name]; ok {
		view.Value = pending
	}

	owner, tagged := overlay.FieldOwner(f.Name)
	if tagged {
		view.Owner = &owner
		if tag, err := overlay.ParseFieldTag(f.Name); err == nil {
			view.Type = tag.Type
		}
	}

	switch s.viewer.Mode {
	case ViewReviewing:
		view.Visible = true
	default:
		own := tagged && owner == s.viewer.Identity
		view.Visible = own
		view.Editable = own && !f.Filled() && s.state == StateReady
	}
	if !view.Visible {
		view.Value = ""
	}
	return view
}

// VisibleOverlay serializes the merged overlay restricted to what the viewer
// may see, with pending values applied. Annotations attached to hidden fields
// are dropped.
func (s *Session) VisibleOverlay() (string, error) {
	s.mu.RLock()
	if s.merged == nil {
		s.mu.RUnlock()
		return "", fmt.Errorf("session is %s", s.state)
	}

	doc := s.merged.Clone()
	visible := make(map[string]bool, len(doc.Fields))
	fields := doc.Fields[:0]
	for _, f := range doc.Fields {
		view := s.fieldView(f)
		visible[f.Name] = view.Visible
		if view.Visible {
			fields = append(fields, overlay.Field{Name: f.Name, Value: view.Value})
		}
	}
	s.mu.RUnlock()

	doc.Fields = fields
	doc.Annots = slices.DeleteFunc(doc.Annots, func(a overlay.Element) bool {
		field := a.Attr("field")
		return field != "" && !visible[field]
	})
	return doc.String()
}

// SetField records a value for one of the viewer's editable fields. An empty
// value clears the pending edit.
func (s *Session) SetField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}

	f, ok := s.merged.Field(name)
	if !ok {
		return fmt.Errorf("%w: unknown field %q", interfaces.ErrNotEditable, name)
	}
	if !s.fieldView(f).Editable {
		return fmt.Errorf("%w: %q", interfaces.ErrNotEditable, name)
	}

	if value == "" {
		delete(s.pending, name)
	} else {
		s.pending[name] = value
	}
	return nil
}

// Pending returns the field values set since the last successful publish.
func (s *Session) Pending() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.pending)
}

// Publish seals the viewer's pending field values into a new step: seal with
// the contract's mode, store, then append to the ledger. Only one publish runs
// per session at a time; a concurrent call fails with ErrPublishInProgress.
// On failure nothing is appended and the pending values are kept.
func (s *Session) Publish(ctx context.Context) (string, error) {
	if !s.publishing.TryLock() {
		return "", interfaces.ErrPublishInProgress
	}
	defer s.publishing.Unlock()

	s.mu.RLock()
	err := s.readyLocked()
	contract, file := s.contract, s.file
	edits := maps.Clone(s.pending)
	s.mu.RUnlock()
	if err != nil {
		return "", err
	}

	if !contract.HasSigner(s.viewer.Identity) {
		return "", fmt.Errorf("%w: %s", interfaces.ErrUnknownSigner, s.viewer.Identity.Hex())
	}
	if len(edits) == 0 {
		return "", ErrNothingToPublish
	}

	layer := &overlay.Document{}
	for _, name := range slices.Sorted(maps.Keys(edits)) {
		layer.Fields = append(layer.Fields, overlay.Field{Name: name, Value: edits[name]})
	}

	step, err := s.publishLayer(ctx, contract, file, layer)
	s.engine.metrics.Published(err)
	if err != nil {
		s.log.Warn("publish failed, edits kept", slog.Int("fields", len(edits)), "err", err)
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	step.Index = len(s.contract.Steps)
	s.contract.Steps = append(s.contract.Steps, step)

	merged, collisions := overlay.Merge(s.merged, []overlay.Layer{{Author: s.viewer.Identity, Doc: layer}})
	for i := range collisions {
		collisions[i].Layer = step.Index
	}
	s.reportCollisions(collisions)
	s.merged = merged
	s.collisions = append(s.collisions, collisions...)

	for name, value := range edits {
		if s.pending[name] == value {
			delete(s.pending, name)
		}
	}

	s.log.Info("step published", slog.String("stepID", step.ID), slog.String("payload", step.ContractHash.String()))
	return step.ID, nil
}

func (s *Session) publishLayer(ctx context.Context, contract *interfaces.Contract, file []byte, layer *overlay.Document) (interfaces.Step, error) {
	xfdf, err := layer.String()
	if err != nil {
		return interfaces.Step{}, err
	}

	payload, err := s.engine.policy.SealPayload(ctx, contract.EncryptionMode, file, xfdf, s.viewer.Keys,
		audience(contract.Initiator, contract.SignerAddresses()))
	if err != nil {
		return interfaces.Step{}, fmt.Errorf("failed to seal step payload: %w", err)
	}

	data, err := policy.EncodePayload(payload)
	if err != nil {
		return interfaces.Step{}, err
	}

	payloadID, err := s.engine.store.Store(ctx, data)
	if err != nil {
		return interfaces.Step{}, fmt.Errorf("failed to store step payload: %w", err)
	}

	stepID, err := s.engine.ledger.CreateStep(ctx, contract.ID, s.viewer.Identity, payloadID)
	if err != nil {
		return interfaces.Step{}, ledgerError("append step", err)
	}

	return interfaces.Step{
		ID:           stepID,
		ContractID:   contract.ID,
		Signer:       s.viewer.Identity,
		ContractHash: payloadID,
		CreatedAt:    now(),
	}, nil
}

func (s *Session) readyLocked() error {
	switch s.state {
	case StateReady:
		return nil
	case StateAbandoned:
		return interfaces.ErrSessionAbandoned
	default:
		return fmt.Errorf("session is %s", s.state)
	}
}

// isSessionFatal reports errors that are about connectivity rather than a
// single payload.
func isSessionFatal(err error) bool {
	return errors.Is(err, interfaces.ErrBackendUnavailable) ||
		errors.Is(err, interfaces.ErrCustodyUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrDecryption):
		return "decryption"
	case errors.Is(err, interfaces.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, interfaces.ErrPayloadIntegrity):
		return "payload_integrity"
	case errors.Is(err, interfaces.ErrContentNotFound):
		return "not_found"
	case errors.Is(err, interfaces.ErrMissingKeyMaterial):
		return "missing_key"
	default:
		return "other"
	}
}
