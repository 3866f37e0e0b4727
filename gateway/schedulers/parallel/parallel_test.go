package parallel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/guardianbot/guardian/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberEvt(guildID, memberID string, seq int64) *gateway.StreamEvent {
	return &gateway.StreamEvent{
		MemberUpdate: &gateway.MemberUpdate{
			Seq:      seq,
			GuildID:  guildID,
			MemberID: memberID,
		},
	}
}

func TestParallelSchedulerOrdering(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var lk sync.Mutex
	seen := make(map[string][]int64)
	done := make(chan struct{}, 64)

	sched := NewScheduler(4, "test", func(ctx context.Context, evt *gateway.StreamEvent) error {
		mu := evt.MemberUpdate
		lk.Lock()
		seen[mu.GuildID+"/"+mu.MemberID] = append(seen[mu.GuildID+"/"+mu.MemberID], mu.Seq)
		lk.Unlock()
		done <- struct{}{}
		return nil
	})

	total := 0
	for i := int64(1); i <= 10; i++ {
		require.NoError(t, sched.AddWork(ctx, "g1/m1", memberEvt("g1", "m1", i)))
		require.NoError(t, sched.AddWork(ctx, "g2/m2", memberEvt("g2", "m2", i)))
		total += 2
	}

	for i := 0; i < total; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for scheduler")
		}
	}
	sched.Shutdown()

	lk.Lock()
	defer lk.Unlock()
	for key, seqs := range seen {
		assert.Equal(10, len(seqs), key)
		for i := 1; i < len(seqs); i++ {
			assert.Less(seqs[i-1], seqs[i], "events for %s processed out of order", key)
		}
	}
}
