package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProberStartsOffline(t *testing.T) {
	p := NewHealthProber(func(context.Context) error { return nil }, time.Hour, time.Second)
	assert.False(t, p.Online())
}

func TestProberNotifiesOnEdgesOnly(t *testing.T) {
	var mu sync.Mutex
	healthy := false
	probe := func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if healthy {
			return nil
		}
		return errors.New("unreachable")
	}

	p := NewHealthProber(probe, 10*time.Millisecond, time.Second)
	edges := make(chan bool, 16)
	p.Subscribe(func(online bool) { edges <- online })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	// Several failing probes from the initial offline state: no edge.
	select {
	case <-edges:
		t.Fatal("offline→offline must not notify")
	case <-time.After(60 * time.Millisecond):
	}

	mu.Lock()
	healthy = true
	mu.Unlock()

	select {
	case online := <-edges:
		assert.True(t, online)
	case <-time.After(2 * time.Second):
		t.Fatal("no offline→online edge")
	}
	require.True(t, p.Online())

	// Staying healthy produces no further edges.
	select {
	case <-edges:
		t.Fatal("online→online must not notify")
	case <-time.After(60 * time.Millisecond):
	}

	mu.Lock()
	healthy = false
	mu.Unlock()

	select {
	case online := <-edges:
		assert.False(t, online)
	case <-time.After(2 * time.Second):
		t.Fatal("no online→offline edge")
	}
	assert.False(t, p.Online())
}

func TestProberStopsOnContextCancel(t *testing.T) {
	var mu sync.Mutex
	probes := 0
	p := NewHealthProber(func(context.Context) error {
		mu.Lock()
		probes++
		mu.Unlock()
		return nil
	}, 10*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	after := probes
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, probes, after+1, "prober kept running after cancel")
}
