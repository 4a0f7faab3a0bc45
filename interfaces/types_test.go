package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Identity
		wantErr bool
	}{
		{name: "lowercase hex", input: "0x1111111111111111111111111111111111111111", want: alice},
		{name: "no prefix", input: "2222222222222222222222222222222222222222", want: bob},
		{name: "pkh did", input: "did:pkh:eip155:1:0x3333333333333333333333333333333333333333", want: carol},
		{name: "solana did", input: "did:pkh:solana:4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZ:abc", wantErr: true},
		{name: "garbage", input: "alice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentity(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEncryptionMode(t *testing.T) {
	for input, want := range map[string]EncryptionMode{
		"0":              ModeNone,
		"password":       ModePassword,
		"access-control": ModeAccessControl,
		"2":              ModeAccessControl,
	} {
		got, err := ParseEncryptionMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseEncryptionMode("3")
	assert.ErrorIs(t, err, ErrUnsupportedMode)
	assert.False(t, EncryptionMode(3).Valid())
}

func TestContractSigningProgress(t *testing.T) {
	c := &Contract{
		Initiator: alice,
		Signers:   []Signer{{Address: alice}, {Address: bob}},
	}

	assert.True(t, c.IsParticipant(alice))
	assert.False(t, c.IsParticipant(carol))
	assert.Equal(t, []Identity{alice, bob}, c.PendingSigners())
	assert.False(t, c.FullySigned())

	c.Steps = append(c.Steps, Step{Index: 0, Signer: bob})
	assert.True(t, c.SignedBy(bob))
	assert.Equal(t, []Identity{alice}, c.PendingSigners())
	assert.False(t, c.FullySigned())

	c.Steps = append(c.Steps, Step{Index: 1, Signer: alice})
	assert.Empty(t, c.PendingSigners())
	assert.True(t, c.FullySigned())

	var empty Contract
	assert.False(t, empty.FullySigned())
}

func TestContractDraftValidate(t *testing.T) {
	valid := func() ContractDraft {
		return ContractDraft{
			Name:           "nda.pdf",
			EncryptionMode: ModePassword,
			ContractHash:   ComputeContentID([]byte("payload")),
			Initiator:      alice,
			Signers:        []Signer{{Address: alice}, {Address: bob}},
		}
	}

	d := valid()
	require.NoError(t, d.Validate())

	tests := []struct {
		name    string
		mutate  func(d *ContractDraft)
		wantErr error
	}{
		{name: "bad mode", mutate: func(d *ContractDraft) { d.EncryptionMode = 7 }, wantErr: ErrUnsupportedMode},
		{name: "no root", mutate: func(d *ContractDraft) { d.ContractHash = ContentID{} }, wantErr: ErrInvalidContract},
		{name: "no initiator", mutate: func(d *ContractDraft) { d.Initiator = Identity{} }, wantErr: ErrInvalidContract},
		{name: "no signers", mutate: func(d *ContractDraft) { d.Signers = nil }, wantErr: ErrInvalidContract},
		{name: "duplicate signer", mutate: func(d *ContractDraft) { d.Signers = append(d.Signers, Signer{Address: bob}) }, wantErr: ErrInvalidContract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			assert.ErrorIs(t, d.Validate(), tt.wantErr)
		})
	}
}

func TestContractFilter(t *testing.T) {
	c := &Contract{Initiator: alice, Signers: []Signer{{Address: bob}}}

	assert.True(t, ContractFilter{}.Matches(c))
	assert.True(t, ContractFilter{Participant: &alice}.Matches(c))
	assert.True(t, ContractFilter{Participant: &bob}.Matches(c))
	assert.False(t, ContractFilter{Participant: &carol}.Matches(c))
}
