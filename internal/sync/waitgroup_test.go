package sync_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	internalSync "github.com/ThreeDotsLabs/watermill-autoconfig/internal/sync"
)

func TestWaitGroupTimeout(t *testing.T) {
	wg := &sync.WaitGroup{}
	assert.False(t, internalSync.WaitGroupTimeout(wg, time.Second))

	wg.Add(1)
	assert.True(t, internalSync.WaitGroupTimeout(wg, time.Millisecond*10))

	go func() {
		time.Sleep(time.Millisecond * 10)
		wg.Done()
	}()
	assert.False(t, internalSync.WaitGroupTimeout(wg, 0))
}
