package queue

import (
	"testing"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob(`{"id":"j1","kind":"capture","booking_id":7,"intent_ref":"pi_1","attempt":2}`)
	require.NoError(t, err)
	assert.Equal(t, model.JobCapture, job.Kind)
	assert.Equal(t, int64(7), job.BookingID)
	assert.Equal(t, "pi_1", job.IntentRef)
	assert.Equal(t, 2, job.Attempt)
}

func TestDecodeJobRejectsIncompleteJobs(t *testing.T) {
	_, err := decodeJob(`{"id":"j1","kind":"capture"}`)
	assert.Error(t, err)

	_, err = decodeJob(`not json`)
	assert.Error(t, err)
}
