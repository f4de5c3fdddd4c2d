package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, time.March, 3, 14, 0, 0, 0, time.UTC)

	t.Run("Now follows Advance and Set", func(t *testing.T) {
		clock := NewFakeClock(start)
		assert.Equal(t, start, clock.Now())

		clock.Advance(90 * time.Second)
		assert.Equal(t, start.Add(90*time.Second), clock.Now())

		later := start.Add(24 * time.Hour)
		clock.Set(later)
		assert.Equal(t, later, clock.Now())
	})

	t.Run("converts to UTC", func(t *testing.T) {
		loc := time.FixedZone("EST", -5*3600)
		clock := NewFakeClock(start.In(loc))
		assert.Equal(t, time.UTC, clock.Now().Location())
		assert.True(t, clock.Now().Equal(start))
	})

	t.Run("ticker fires once per elapsed interval", func(t *testing.T) {
		clock := NewFakeClock(start)
		ticker := clock.NewTicker(time.Minute)
		defer ticker.Stop()

		clock.Advance(30 * time.Second)
		select {
		case <-ticker.Chan():
			t.Fatal("ticker fired before its interval elapsed")
		default:
		}

		clock.Advance(30 * time.Second)
		select {
		case tick := <-ticker.Chan():
			assert.Equal(t, start.Add(time.Minute), tick)
		default:
			t.Fatal("ticker did not fire")
		}
	})

	t.Run("missed ticks collapse into one", func(t *testing.T) {
		clock := NewFakeClock(start)
		ticker := clock.NewTicker(time.Minute)
		defer ticker.Stop()

		clock.Advance(5 * time.Minute)
		<-ticker.Chan()
		select {
		case <-ticker.Chan():
			t.Fatal("ticker buffered more than one tick")
		default:
		}
	})

	t.Run("Set fires due tickers", func(t *testing.T) {
		clock := NewFakeClock(start)
		ticker := clock.NewTicker(time.Minute)
		defer ticker.Stop()

		clock.Set(start.Add(90 * time.Second))
		select {
		case <-ticker.Chan():
		default:
			t.Fatal("ticker did not fire")
		}
		assert.Equal(t, start.Add(90*time.Second), clock.Now())
	})

	t.Run("stopped ticker stays silent", func(t *testing.T) {
		clock := NewFakeClock(start)
		ticker := clock.NewTicker(time.Minute)
		ticker.Stop()

		clock.Advance(2 * time.Minute)
		select {
		case <-ticker.Chan():
			t.Fatal("stopped ticker fired")
		default:
		}
	})
}

func TestSystemClock(t *testing.T) {
	clock := SystemClock()
	assert.Equal(t, time.UTC, clock.Now().Location())

	ticker := clock.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.Chan():
	case <-time.After(2 * time.Second):
		t.Fatal("real ticker did not fire")
	}
}

func TestSecondsUntil(t *testing.T) {
	now := time.Date(2025, time.March, 3, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(1500), SecondsUntil(now, now.Add(25*time.Minute)))
	assert.Equal(t, int64(0), SecondsUntil(now, now.Add(-time.Second)))
	assert.Equal(t, int64(0), SecondsUntil(now, now.Add(500*time.Millisecond)))
}

func TestNormalizePage(t *testing.T) {
	page, size, offset := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)
	assert.Equal(t, 0, offset)

	page, size, offset = NormalizePage(3, 10)
	assert.Equal(t, 3, page)
	assert.Equal(t, 10, size)
	assert.Equal(t, 20, offset)

	_, size, _ = NormalizePage(1, MaxPageSize+50)
	assert.Equal(t, MaxPageSize, size)
}
