package bridge

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliverOrder(t *testing.T) {
	var got []Message
	b := New(func(m Message) { got = append(got, m) })

	b.Text("one")
	b.Status("TWO")
	b.Progress(3)

	require.Equal(t, 3, b.Deliver())
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "TWO", got[1].Status)
	assert.Equal(t, 3.0, got[2].Progress)

	// Each message is consumed exactly once.
	assert.Equal(t, 0, b.Deliver())
}

func TestPerSenderOrdering(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	b := New(func(m Message) {
		mu.Lock()
		got = append(got, m.Text)
		mu.Unlock()
	})

	const perSender = 200
	var wg sync.WaitGroup
	for sender := 0; sender < 4; sender++ {
		wg.Add(1)
		go func(sender int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				b.Text(fmt.Sprintf("%d:%d", sender, i))
			}
		}(sender)
	}

	// Drain concurrently with publishing, the way the owner's frame loop
	// would.
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	finished := false
	for !finished {
		select {
		case <-done:
			finished = true
		default:
			time.Sleep(time.Millisecond)
		}
		b.Deliver()
	}

	require.Len(t, got, 4*perSender)
	next := map[string]int{}
	for _, text := range got {
		var sender, i int
		_, err := fmt.Sscanf(text, "%d:%d", &sender, &i)
		require.NoError(t, err)
		key := fmt.Sprintf("%d", sender)
		assert.Equal(t, next[key], i, "messages from sender %d out of order", sender)
		next[key]++
	}
}

func TestViewAppliesExactlyNamedState(t *testing.T) {
	var v View

	v.Apply(Message{Kind: KindText, Text: "hello"})
	assert.Equal(t, View{Text: "hello"}, v)

	v.Apply(Message{Kind: KindStatus, Status: "PACKING"})
	assert.Equal(t, View{Text: "hello", Status: "PACKING"}, v)

	v.Apply(Message{Kind: KindProgress, Progress: 42.5})
	assert.Equal(t, View{Text: "hello", Status: "PACKING", Progress: 42.5}, v)
}

func TestGoConvertsErrorToMessages(t *testing.T) {
	var v View
	b := New(v.Apply)

	done := b.Go(func() error {
		b.Text("working")
		return errors.New("disk full")
	})
	<-done
	b.Deliver()

	assert.Equal(t, StatusAborted, v.Status)
	assert.Equal(t, "disk full", v.Text)
}

func TestGoConvertsPanicToMessages(t *testing.T) {
	var v View
	b := New(v.Apply)

	done := b.Go(func() error {
		panic("unexpected")
	})
	<-done
	b.Deliver()

	assert.Equal(t, StatusAborted, v.Status)
	assert.Contains(t, v.Text, "unexpected")
}

func TestQueuedMessagesSurviveAbort(t *testing.T) {
	var got []Message
	b := New(func(m Message) { got = append(got, m) })

	done := b.Go(func() error {
		b.Progress(10)
		b.Progress(20)
		return errors.New("aborted mid-operation")
	})
	<-done

	// Nothing was delivered while the worker ran; everything queued
	// before the abort still arrives afterwards, in order.
	require.Equal(t, 4, b.Deliver())
	assert.Equal(t, 10.0, got[0].Progress)
	assert.Equal(t, 20.0, got[1].Progress)
	assert.Equal(t, StatusAborted, got[2].Status)
}
