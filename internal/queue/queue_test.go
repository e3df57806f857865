package queue

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/liveplot/internal/monitoring"
	"github.com/banshee-data/liveplot/internal/protocol"
	"github.com/banshee-data/liveplot/internal/testutil"
)

func TestQueueDrainEmpty(t *testing.T) {
	q := New[int]()
	items, closed := q.Drain(nil)
	assert.Empty(t, items)
	assert.False(t, closed)
}

func TestQueueDrainReturnsAllInOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Len())

	items, _ := q.Drain(nil)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, items)
	assert.Equal(t, 0, q.Len())
}

func TestQueueCloseKeepsQueuedItems(t *testing.T) {
	q := New[string]()
	q.Push("a")
	q.Close()

	assert.False(t, q.Push("b"), "Push after Close must fail")
	items, closed := q.Drain(nil)
	assert.Equal(t, []string{"a"}, items)
	assert.True(t, closed)
	assert.True(t, q.Closed())
}

func TestQueueReadySignal(t *testing.T) {
	q := New[int]()
	select {
	case <-q.Ready():
		t.Fatal("Ready signalled on empty queue")
	default:
	}

	q.Push(1)
	q.Push(2)
	select {
	case <-q.Ready():
	default:
		t.Fatal("Ready not signalled after Push")
	}
}

func TestQueueSingleProducerSingleConsumer(t *testing.T) {
	const total = 20_000
	q := New[int]()

	go func() {
		for i := 0; i < total; i++ {
			q.Push(i)
		}
		q.Close()
	}()

	var got []int
	for {
		var closed bool
		got, closed = q.Drain(got)
		if closed {
			got, _ = q.Drain(got)
			break
		}
		<-q.Ready()
	}

	require.Len(t, got, total)
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestSenderToPumpPreservesOrder(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewSender(pw)
	q := New[protocol.Command]()

	var pumpErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pumpErr = Pump(pr, q)
	}()

	const n = 200
	for i := 0; i < n; i++ {
		require.True(t, s.Send(protocol.UpdateData{PlotID: i, X: []float64{float64(i)}, Y: []float64{0}}))
	}
	require.NoError(t, s.Close())
	wg.Wait()
	require.NoError(t, pumpErr)

	items, closed := q.Drain(nil)
	assert.True(t, closed, "Pump must close the queue at end of stream")
	require.Len(t, items, n)
	for i, c := range items {
		assert.Equal(t, i, c.(protocol.UpdateData).PlotID)
	}
	assert.Equal(t, uint64(n), s.Stats().Sent)
}

func TestSenderDropsAfterBrokenStream(t *testing.T) {
	defer monitoring.SetLogger(nil)
	monitoring.SetLogger(nil)

	pr, pw := io.Pipe()
	pr.CloseWithError(errors.New("renderer gone"))

	s := NewSender(pw)
	for i := 0; i < 3; i++ {
		assert.True(t, s.Send(protocol.AddPlot{Kind: protocol.KindLine}), "Send must not report stream failures")
	}

	testutil.Eventually(t, func() bool { return s.Stats().Dropped == 3 }, "queued commands dropped")
	assert.True(t, s.Stats().Broken)

	s.Send(protocol.AddPlot{Kind: protocol.KindLine})
	testutil.Eventually(t, func() bool { return s.Stats().Dropped == 4 }, "later command dropped")
	assert.NoError(t, s.Close())
	assert.False(t, s.Send(protocol.AddPlot{Kind: protocol.KindLine}))
}

type unsupported struct{ protocol.AddPlot }

func TestSenderSkipsUnsupportedCommand(t *testing.T) {
	defer monitoring.SetLogger(nil)
	monitoring.SetLogger(nil)

	pr, pw := io.Pipe()
	s := NewSender(pw)
	q := New[protocol.Command]()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Pump(pr, q)
	}()

	s.Send(unsupported{})
	s.Send(protocol.AddPlot{Kind: protocol.KindScatter})
	require.NoError(t, s.Close())
	<-done

	items, _ := q.Drain(nil)
	require.Len(t, items, 1)
	assert.Equal(t, protocol.AddPlot{Kind: protocol.KindScatter}, items[0])
	assert.Equal(t, uint64(1), s.Stats().Dropped)
	assert.False(t, s.Stats().Broken)
}
