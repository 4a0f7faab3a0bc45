package interfaces

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeContentID(t *testing.T) {
	a := ComputeContentID([]byte("payload"))
	b := ComputeContentID([]byte("payload"))
	c := ComputeContentID([]byte("other"))

	assert.True(t, a.Defined())
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, uint64(1), a.Cid().Version())

	assert.True(t, a.Verify([]byte("payload")))
	assert.False(t, a.Verify([]byte("other")))
	assert.False(t, ContentID{}.Verify([]byte("payload")))
}

func TestContentIDText(t *testing.T) {
	id := ComputeContentID([]byte("payload"))

	parsed, err := ParseContentID(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))

	out, err := json.Marshal(struct {
		ID ContentID `json:"id"`
	}{id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(out))

	var decoded struct {
		ID ContentID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.True(t, id.Equal(decoded.ID))

	require.NoError(t, json.Unmarshal([]byte(`{"id":""}`), &decoded))
	assert.False(t, decoded.ID.Defined())

	_, err = ParseContentID("not-a-cid")
	assert.Error(t, err)
}

func TestNewStorageBackendLocation(t *testing.T) {
	loc, err := NewStorageBackendLocation("s3://contracts/payloads?region=eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "s3", loc.Scheme)
	assert.Equal(t, "contracts", loc.Host)
	assert.Equal(t, "/payloads", loc.Path)
	assert.Equal(t, "eu-west-1", loc.GetParam("region"))

	_, err = NewStorageBackendLocation("github://owner/repo")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)
}
