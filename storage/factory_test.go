package storage

import (
	"context"
	"testing"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBackendFor(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())
	dir := t.TempDir()

	tests := []struct {
		name     string
		uri      string
		wantName string
		wantErr  bool
	}{
		{name: "file", uri: "file://" + dir, wantName: "file-"},
		{name: "badger memory", uri: "badger://memory", wantName: "badger"},
		{name: "s3", uri: "s3://AKID:SECRET@contracts/payloads?region=eu-west-1", wantName: "s3-contracts"},
		{name: "ipfs", uri: "ipfs://127.0.0.1:5001/?timeout=5s", wantName: "ipfs-127.0.0.1-5001"},
		{name: "ipfs bad timeout", uri: "ipfs://127.0.0.1:5001/?timeout=soon", wantErr: true},
		{name: "vault", uri: "vault://token@127.0.0.1:8200/secret/contracts?tls=false", wantName: "vault-secret-contracts"},
		{name: "vault without mount", uri: "vault://127.0.0.1:8200", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, err := interfaces.NewStorageBackendLocation(tt.uri)
			require.NoError(t, err)

			backend, err := factory.StorageBackendFor(location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, backend.Name(), tt.wantName)
		})
	}
}

func TestFromURIs(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())

	single, err := factory.FromURIs([]string{"badger://memory"})
	require.NoError(t, err)
	assert.IsType(t, &BadgerBackend{}, single)

	multi, err := factory.FromURIs([]string{"badger://memory", "file://" + t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &MultiStorageBackend{}, multi)

	id, err := multi.Store(context.Background(), []byte("replicated"))
	require.NoError(t, err)
	data, err := multi.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("replicated"), data)

	_, err = factory.FromURIs([]string{"github://owner/repo"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.FromURIs(nil)
	assert.Error(t, err)
}
