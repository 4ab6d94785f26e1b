package coarsetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow_Advances(t *testing.T) {
	start := Now()
	assert.WithinDuration(t, time.Now(), start, 2*Resolution)

	assert.Eventually(t, func() bool { return Now().After(start) }, 10*Resolution, Resolution/5)
}

func TestSince(t *testing.T) {
	past := time.Now().Add(-time.Second)
	assert.InDelta(t, float64(time.Second), float64(Since(past)), float64(2*Resolution))
}

func BenchmarkTimeNow(b *testing.B) {
	var t time.Time

	b.Run("time", func(b *testing.B) {
		for b.Loop() {
			t = time.Now()
		}
	})

	b.Run("coarsetime", func(b *testing.B) {
		for b.Loop() {
			t = Now()
		}
	})

	_ = t
}
