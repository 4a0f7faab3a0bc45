package reconstruct

import (
	"context"
	"testing"
	"time"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/overlay"
	"github.com/djvang/pdftron-sign-app/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateContractValidation(t *testing.T) {
	f := newFixture(t)
	stranger := newWallet(t)

	valid := func() CreateRequest {
		return CreateRequest{
			Name:      "nda",
			Mode:      interfaces.ModePassword,
			Initiator: f.initiator.addr,
			Signers:   []interfaces.Identity{f.alice.addr},
			File:      []byte(baseDocument),
			Fields:    []overlay.FieldTag{f.aliceSignature()},
			Keys:      policy.KeyMaterial{Password: "pw"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateRequest)
		wantErr error
	}{
		{
			name:    "field for a non-signer",
			mutate:  func(r *CreateRequest) { r.Fields = append(r.Fields, overlay.FieldTag{Signer: stranger.addr, Type: overlay.FieldDate, Timestamp: time.UnixMilli(5)}) },
			wantErr: interfaces.ErrUnknownSigner,
		},
		{
			name:    "unknown mode",
			mutate:  func(r *CreateRequest) { r.Mode = 7 },
			wantErr: interfaces.ErrUnsupportedMode,
		},
		{
			name:    "password mode without password",
			mutate:  func(r *CreateRequest) { r.Keys = policy.KeyMaterial{} },
			wantErr: interfaces.ErrMissingKeyMaterial,
		},
		{
			name:    "access control without proof",
			mutate:  func(r *CreateRequest) { r.Mode = interfaces.ModeAccessControl },
			wantErr: interfaces.ErrMissingKeyMaterial,
		},
		{
			name:   "no signers",
			mutate: func(r *CreateRequest) { r.Signers = nil; r.Fields = nil },
		},
		{
			name:   "field declared twice",
			mutate: func(r *CreateRequest) { r.Fields = append(r.Fields, f.aliceSignature()) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			_, err := f.engine.CreateContract(context.Background(), req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	contracts, err := f.ledger.ListContracts(context.Background(), interfaces.ContractFilter{})
	require.NoError(t, err)
	assert.Empty(t, contracts, "rejected requests record nothing")
}

func TestCreateContractKeepsInitialOverlay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.engine.CreateContract(ctx, CreateRequest{
		Name:      "lease",
		Mode:      interfaces.ModeNone,
		Initiator: f.initiator.addr,
		Signers:   []interfaces.Identity{f.alice.addr},
		File:      []byte(baseDocument),
		Overlay:   `<xfdf xmlns="http://ns.adobe.com/xfdf/"><fields><field name="Landlord"><value>ACME</value></field></fields></xfdf>`,
		Fields:    []overlay.FieldTag{f.aliceSignature()},
	})
	require.NoError(t, err)

	session, err := f.engine.Open(ctx, id, f.alice.password(ViewReviewing, ""))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Landlord": "ACME", f.aliceSignature().Name(): ""}, fieldValues(session.Fields()))

	view, _ := session.Field("Landlord")
	assert.Nil(t, view.Owner)
}

func TestAccessControlledContract(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stranger := newWallet(t)
	aliceField := f.aliceSignature().Name()

	id, err := f.engine.CreateContract(ctx, CreateRequest{
		Name:      "board resolution",
		Mode:      interfaces.ModeAccessControl,
		Initiator: f.initiator.addr,
		Signers:   []interfaces.Identity{f.alice.addr, f.bob.addr},
		File:      []byte(baseDocument),
		Fields:    []overlay.FieldTag{f.aliceSignature(), f.bobName()},
		Keys:      policy.KeyMaterial{AuthProof: f.initiator.proof},
	})
	require.NoError(t, err)

	alice, err := f.engine.Open(ctx, id, f.alice.proven(ViewSigning))
	require.NoError(t, err)
	assert.Equal(t, []byte(baseDocument), alice.File())
	require.NoError(t, alice.SetField(aliceField, "alice"))
	_, err = alice.Publish(ctx)
	require.NoError(t, err)

	initiator, err := f.engine.Open(ctx, id, f.initiator.proven(ViewReviewing))
	require.NoError(t, err)
	view, ok := initiator.Field(aliceField)
	require.True(t, ok)
	assert.Equal(t, "alice", view.Value)
	assert.Empty(t, initiator.Failures())

	denied, err := f.engine.Open(ctx, id, stranger.proven(ViewReviewing))
	assert.ErrorIs(t, err, interfaces.ErrAccessDenied)
	assert.Equal(t, StateFailed, denied.State())

	// A proof for another wallet does not help either.
	impostor := Viewer{Identity: f.bob.addr, Mode: ViewReviewing, Keys: policy.KeyMaterial{AuthProof: stranger.proof}}
	_, err = f.engine.Open(ctx, id, impostor)
	assert.ErrorIs(t, err, interfaces.ErrAccessDenied)
}

func TestInbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	keys := policy.KeyMaterial{Password: "secret123"}

	pending := f.createPasswordContract(t)

	halfSigned := f.createPasswordContract(t)
	f.appendStep(t, halfSigned, f.alice.addr, keys, overlay.Field{Name: f.aliceSignature().Name(), Value: "a"})

	done := f.createPasswordContract(t)
	f.appendStep(t, done, f.alice.addr, keys, overlay.Field{Name: f.aliceSignature().Name(), Value: "a"})
	f.appendStep(t, done, f.bob.addr, keys, overlay.Field{Name: f.bobName().Name(), Value: "b"})

	ids := func(contracts []*interfaces.Contract) []string {
		var out []string
		for _, c := range contracts {
			out = append(out, c.ID)
		}
		return out
	}

	alice, err := f.engine.Inbox(ctx, f.alice.addr)
	require.NoError(t, err)
	assert.Equal(t, []string{pending}, ids(alice.ToSign))
	assert.Equal(t, []string{halfSigned}, ids(alice.Waiting))
	assert.Equal(t, []string{done}, ids(alice.Completed))

	bob, err := f.engine.Inbox(ctx, f.bob.addr)
	require.NoError(t, err)
	assert.Equal(t, []string{halfSigned, pending}, ids(bob.ToSign))
	assert.Empty(t, bob.Waiting)

	initiator, err := f.engine.Inbox(ctx, f.initiator.addr)
	require.NoError(t, err)
	assert.Empty(t, initiator.ToSign)
	assert.Equal(t, []string{halfSigned, pending}, ids(initiator.Waiting))
	assert.Equal(t, []string{done}, ids(initiator.Completed))

	stranger, err := f.engine.Inbox(ctx, newWallet(t).addr)
	require.NoError(t, err)
	assert.Empty(t, stranger.ToSign)
	assert.Empty(t, stranger.Waiting)
	assert.Empty(t, stranger.Completed)
}
