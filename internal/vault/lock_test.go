package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtxRWMutex_ExclusiveWrite(t *testing.T) {
	m := newCtxRWMutex()
	ctx := context.Background()

	require.NoError(t, m.lock(ctx))

	done := make(chan struct{})
	go func() {
		require.NoError(t, m.lock(ctx))
		m.unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("второй writer не должен был получить блокировку, пока первый её держит")
	case <-time.After(50 * time.Millisecond):
	}

	m.unlock()
	<-done
}

func TestCtxRWMutex_MultipleReaders(t *testing.T) {
	m := newCtxRWMutex()
	ctx := context.Background()

	require.NoError(t, m.rlock(ctx))
	require.NoError(t, m.rlock(ctx))

	m.runlock()
	m.runlock()
}

func TestCtxRWMutex_LockTimesOutOnExpiredContext(t *testing.T) {
	m := newCtxRWMutex()
	require.NoError(t, m.lock(context.Background()))
	defer m.unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := m.lock(ctx)
	require.Error(t, err)
	assert.True(t, Is(err, Transient), "таймаут захвата блокировки должен сообщаться как Transient")
}
