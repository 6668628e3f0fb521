package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

func TestHubDeliversPerJobAndClosesOnTerminal(t *testing.T) {
	hub := NewHub(4, nil)
	a, b := uuid.New(), uuid.New()
	chA, _ := hub.Subscribe(a)
	chB, cancelB := hub.Subscribe(b)
	defer cancelB()

	ctx := context.Background()
	hub.Publish(ctx, Event{Kind: KindStatus, JobID: a, Status: constants.JobStatusMatching, Progress: 30})
	hub.Publish(ctx, Event{Kind: KindCompleted, JobID: a, Status: constants.JobStatusCompleted, Progress: 100})

	var got []Event
	for e := range chA {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, KindCompleted, got[1].Kind)
	assert.Zero(t, hub.Subscribers(a))

	select {
	case e := <-chB:
		t.Fatalf("unexpected event on other job: %+v", e)
	default:
	}
	assert.Equal(t, 1, hub.Subscribers(b))
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub(1, nil)
	id := uuid.New()
	ch, cancel := hub.Subscribe(id)
	for i := 0; i < 3; i++ {
		hub.Publish(context.Background(), Event{Kind: KindBatch, JobID: id, Status: constants.JobStatusMatching})
	}
	assert.Len(t, ch, 1)
	assert.Equal(t, int64(2), hub.Dropped())
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestFromSnapshotAndKindFor(t *testing.T) {
	snap := entity.JobSnapshot{JobID: uuid.New(), Status: constants.JobStatusCancelled, Progress: 40, ItemCount: 10, Processed: 4}
	e := FromSnapshot(KindFor(snap.Status), snap)
	assert.Equal(t, KindCancelled, e.Kind)
	assert.True(t, e.Terminal())
	assert.Equal(t, 4, e.Processed)
	assert.Equal(t, KindSubmitted, KindFor(constants.JobStatusPending))
	assert.Equal(t, KindStatus, KindFor(constants.JobStatusParsing))
}

type recorder struct{ events []Event }

func (r *recorder) Publish(_ context.Context, e Event) { r.events = append(r.events, e) }

func TestMultiSkipsNil(t *testing.T) {
	r := &recorder{}
	Multi{nil, r, Discard{}}.Publish(context.Background(), Event{Kind: KindBatch})
	assert.Len(t, r.events, 1)
}

func TestRedisSinkSwallowsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	sink := NewRedisSink(client, "", 100, nil)
	defer sink.Close()

	fields, err := sink.values(Event{Kind: KindBatch, JobID: uuid.New(), Status: constants.JobStatusMatching, Progress: 50})
	require.NoError(t, err)
	assert.Equal(t, "job.batch", fields["kind"])
	assert.Contains(t, fields["payload"], `"progress":50`)

	sink.Publish(context.Background(), Event{Kind: KindBatch, JobID: uuid.New()})
	assert.Equal(t, DefaultStream, sink.stream)
}

func TestDialRedisRejectsBadURL(t *testing.T) {
	_, err := DialRedis(context.Background(), "not-a-url")
	assert.Error(t, err)
}
