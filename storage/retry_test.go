package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRetryingBackendFetch(t *testing.T) {
	data := []byte("payload")
	id := interfaces.ComputeContentID(data)

	inner := &MockStorageBackend{name: "flaky"}
	inner.On("Fetch", mock.Anything, id).Return(nil, interfaces.ErrBackendUnavailable).Twice()
	inner.On("Fetch", mock.Anything, id).Return(data, nil).Once()

	retrying := NewRetryingBackend(inner, time.Second, testLogger())
	got, err := retrying.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	inner.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestRetryingBackendDoesNotRetryPermanentErrors(t *testing.T) {
	for _, permanent := range []error{interfaces.ErrContentNotFound, interfaces.ErrPayloadIntegrity} {
		t.Run(permanent.Error(), func(t *testing.T) {
			id := interfaces.ComputeContentID([]byte("missing"))
			inner := &MockStorageBackend{name: "inner"}
			inner.On("Fetch", mock.Anything, id).Return(nil, permanent)

			_, err := NewRetryingBackend(inner, time.Second, testLogger()).Fetch(context.Background(), id)
			assert.ErrorIs(t, err, permanent)
			inner.AssertNumberOfCalls(t, "Fetch", 1)
		})
	}
}

func TestRetryingBackendGivesUp(t *testing.T) {
	data := []byte("payload")
	inner := &MockStorageBackend{name: "down"}
	inner.On("Store", mock.Anything, data).Return(interfaces.ContentID{}, errors.New("connection refused"))

	_, err := NewRetryingBackend(inner, 300*time.Millisecond, testLogger()).Store(context.Background(), data)
	assert.Error(t, err)
	assert.Greater(t, len(inner.Calls), 1)
}
