package cancel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStartsClear(t *testing.T) {
	tok := NewToken()
	assert.False(t, tok.Cancelled())
	assert.NoError(t, tok.Err())
}

func TestTokenCancelIsSticky(t *testing.T) {
	tok := NewToken()
	tok.Cancel()

	for i := 0; i < 3; i++ {
		require.True(t, tok.Cancelled())
		require.ErrorIs(t, tok.Err(), ErrCancelled)
	}

	// Cancelling again changes nothing.
	tok.Cancel()
	assert.True(t, tok.Cancelled())
}

func TestNilTokenIsNeverCancelled(t *testing.T) {
	var tok *Token
	assert.False(t, tok.Cancelled())
	assert.NoError(t, tok.Err())
}

func TestTokenConcurrentCancel(t *testing.T) {
	tok := NewToken()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok.Cancel()
		}()
	}
	wg.Wait()

	assert.True(t, tok.Cancelled())
}
