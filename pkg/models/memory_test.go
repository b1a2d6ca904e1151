package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStratumNextPrev(t *testing.T) {
	assert.Equal(t, StratumShortTerm, StratumWorking.Next())
	assert.Equal(t, StratumLongTerm, StratumSemantic.Next())

	// Ends are sticky
	assert.Equal(t, StratumLongTerm, StratumLongTerm.Next())
	assert.Equal(t, StratumWorking, StratumWorking.Prev())

	assert.Equal(t, StratumEpisodic, StratumSemantic.Prev())
}

func TestMemoryItemExpired(t *testing.T) {
	now := time.Now()

	item := &MemoryItem{CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour}
	assert.True(t, item.Expired(now))

	item.TTL = 3 * time.Hour
	assert.False(t, item.Expired(now))

	// Zero TTL never expires
	item.TTL = 0
	assert.False(t, item.Expired(now))
}
