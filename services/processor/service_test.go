package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerAdmitsOnePollerPerAccount(t *testing.T) {
	s := NewScheduler(nil, nil, nil, nil, nil)

	assert.True(t, s.tryAcquire(7))
	assert.False(t, s.tryAcquire(7), "a second poll for a busy account is rejected")
	assert.True(t, s.tryAcquire(8), "other accounts are unaffected")

	s.release(7)
	assert.True(t, s.tryAcquire(7), "the slot reopens once the poll finishes")
}
