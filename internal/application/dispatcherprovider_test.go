package application_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life-experimentalist/actionscounter/internal/application"
)

func TestDispatcherProvider_GetReturnsInitial(t *testing.T) {
	d := &mockDispatcher{}
	provider := application.NewDispatcherProvider(d)

	assert.Same(t, d, provider.Get())
}

func TestDispatcherProvider_ReplaceSwaps(t *testing.T) {
	original := &mockDispatcher{}
	replacement := &mockDispatcher{}

	provider := application.NewDispatcherProvider(original)
	provider.Replace(replacement)

	assert.Same(t, replacement, provider.Get())
}

func TestDispatcherProvider_HasDispatcher(t *testing.T) {
	provider := application.NewDispatcherProvider(nil)
	require.False(t, provider.HasDispatcher())

	provider.Replace(&mockDispatcher{})
	require.True(t, provider.HasDispatcher())

	var nilProvider *application.DispatcherProvider
	assert.False(t, nilProvider.HasDispatcher())
}

func TestDispatcherProvider_ConcurrentGetReplace(t *testing.T) {
	d1 := &mockDispatcher{}
	d2 := &mockDispatcher{}
	provider := application.NewDispatcherProvider(d1)

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines * 2)

	for range goroutines {
		go func() {
			defer wg.Done()
			assert.NotNil(t, provider.Get())
		}()
		go func() {
			defer wg.Done()
			provider.Replace(d2)
		}()
	}

	wg.Wait()
	assert.Same(t, d2, provider.Get())
}
