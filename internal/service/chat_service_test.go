package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newLockOnlyService() *ChatService {
	return &ChatService{locks: map[string]*sessionLock{}}
}

func TestSessionLocksSerializeTurnsPerSession(t *testing.T) {
	s := newLockOnlyService()

	var inCritical, maxInCritical int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.lockSession("session-a")
			defer s.unlockSession("session-a")

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical)
}

func TestSessionLocksArePrunedWhenIdle(t *testing.T) {
	s := newLockOnlyService()

	var wg sync.WaitGroup
	sessions := []string{"a", "b", "c", "d"}
	for _, id := range sessions {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				s.lockSession(id)
				time.Sleep(time.Millisecond)
				s.unlockSession(id)
			}(id)
		}
	}
	wg.Wait()

	// Every session went idle, so no lock entries remain
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.locks)
}

func TestSessionLocksDoNotBlockAcrossSessions(t *testing.T) {
	s := newLockOnlyService()

	s.lockSession("busy")
	defer s.unlockSession("busy")

	done := make(chan struct{})
	go func() {
		s.lockSession("other")
		s.unlockSession("other")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a held lock for one session blocked another session")
	}
}
