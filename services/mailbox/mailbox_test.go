package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_FIFO(t *testing.T) {
	m := New[int]()
	for i := 0; i < 5; i++ {
		assert.True(t, m.Send(i))
	}
	assert.Equal(t, 5, m.Len())

	for i := 0; i < 5; i++ {
		v, status := m.TryRecv()
		require.Equal(t, Received, status)
		assert.Equal(t, i, v)
	}

	_, status := m.TryRecv()
	assert.Equal(t, Empty, status)
}

func TestMailbox_CloseDrainsThenReportsClosed(t *testing.T) {
	m := New[string]()
	m.Send("a")
	m.Close()

	assert.False(t, m.Send("b"))
	assert.True(t, m.IsClosed())

	v, status := m.TryRecv()
	assert.Equal(t, Received, status)
	assert.Equal(t, "a", v)

	_, status = m.TryRecv()
	assert.Equal(t, Closed, status)
}

func TestMailbox_RecvWaitsForSend(t *testing.T) {
	m := New[int]()

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Send(7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	v, err := m.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestMailbox_RecvReturnsOnClose(t *testing.T) {
	m := New[int]()
	go m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := m.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMailbox_RecvHonoursContext(t *testing.T) {
	m := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMailbox_ManyProducersNeverBlock(t *testing.T) {
	m := New[int]()
	const producers, perProducer = 8, 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.Send(p*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, m.Len())

	last := make(map[int]int)
	for {
		v, status := m.TryRecv()
		if status != Received {
			break
		}
		p := v / perProducer
		if prev, ok := last[p]; ok {
			assert.Greater(t, v, prev, "per-producer order must hold")
		}
		last[p] = v
	}
	assert.Len(t, last, producers)
}

func TestMailbox_ReadySignals(t *testing.T) {
	m := New[int]()
	m.Send(1)

	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready did not fire after send")
	}
}
