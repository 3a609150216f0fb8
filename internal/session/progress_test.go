package session_test

import (
	"testing"

	"github.com/beamship/beam/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestParseProgress(t *testing.T) {
	t.Run("positive", func(t *testing.T) {
		t.Run("basic", func(t *testing.T) {
			sample, err := session.ParseProgress("1024:2048:500000")
			assert.Nil(t, err)
			assert.Equal(t, int64(1024), sample.BytesTransferred)
			assert.Equal(t, int64(2048), sample.TotalBytes)
			assert.Equal(t, float64(500), sample.SpeedBps)
			assert.Equal(t, float64(50), sample.Percentage)
		})
		t.Run("fractional speed", func(t *testing.T) {
			sample, err := session.ParseProgress("0:10:1500")
			assert.Nil(t, err)
			assert.Equal(t, 1.5, sample.SpeedBps)
			assert.Equal(t, float64(0), sample.Percentage)
		})
		t.Run("zero total yields zero percentage", func(t *testing.T) {
			sample, err := session.ParseProgress("100:0:0")
			assert.Nil(t, err)
			assert.Equal(t, float64(0), sample.Percentage)
		})
	})
	t.Run("negative", func(t *testing.T) {
		t.Run("wrong arity", func(t *testing.T) {
			_, err := session.ParseProgress("1024:2048")
			assert.Error(t, err)
			_, err = session.ParseProgress("1:2:3:4")
			assert.Error(t, err)
		})
		t.Run("non-numeric field", func(t *testing.T) {
			_, err := session.ParseProgress("abc:2048:0")
			assert.Error(t, err)
			_, err = session.ParseProgress("1024:xyz:0")
			assert.Error(t, err)
			_, err = session.ParseProgress("1024:2048:fast")
			assert.Error(t, err)
		})
		t.Run("negative field", func(t *testing.T) {
			_, err := session.ParseProgress("-1:2048:0")
			assert.Error(t, err)
		})
		t.Run("empty payload", func(t *testing.T) {
			_, err := session.ParseProgress("")
			assert.Error(t, err)
		})
	})
}
