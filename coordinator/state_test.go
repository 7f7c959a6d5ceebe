package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/willi-kappler/crunchgrid/nodeid"
)

func TestStateRegisterAndKnows(t *testing.T) {
	s := newState(10)
	id := nodeid.New()

	assert.False(t, s.knows(id))
	s.register(id, time.Now())
	assert.True(t, s.knows(id))
}

func TestStateTouchUpdatesLastSeenForKnownWorker(t *testing.T) {
	s := newState(10)
	id := nodeid.New()
	t0 := time.Now()
	s.register(id, t0)

	t1 := t0.Add(5 * time.Second)
	s.touch(id, t1)

	assert.Equal(t, t1, s.workers[id].lastSeen)
}

func TestStateTouchIsNoOpForUnknownWorker(t *testing.T) {
	s := newState(10)
	id := nodeid.New()

	assert.NotPanics(t, func() {
		s.touch(id, time.Now())
	})
	assert.False(t, s.knows(id))
}
