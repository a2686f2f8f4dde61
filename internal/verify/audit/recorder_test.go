package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
)

type RecorderSuite struct {
	suite.Suite
	store  *InMemoryStore
	logger *slog.Logger
}

func (s *RecorderSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) TestPerKeyOrdering() {
	recorder := NewRecorder(s.logger, []Store{s.store})

	const keys = 8
	const perKey = 50

	var wg sync.WaitGroup
	for k := 0; k < keys; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			key := fmt.Sprintf("corr-%d", k)
			for i := 0; i < perKey; i++ {
				recorder.Record(Snapshot{
					CorrelationID: key,
					Operation:     "register",
					Stage:         StageRequest,
					Message:       fmt.Sprintf("%d", i),
				})
			}
		}(k)
	}
	wg.Wait()
	recorder.Close()

	for k := 0; k < keys; k++ {
		key := fmt.Sprintf("corr-%d", k)
		snaps, err := s.store.ListByCorrelation(context.Background(), key)
		s.Require().NoError(err)
		s.Require().Len(snaps, perKey, "key %s", key)
		for i, snap := range snaps {
			s.Equal(fmt.Sprintf("%d", i), snap.Message, "key %s position %d", key, i)
		}
	}
}

func (s *RecorderSuite) TestFanOutToAllStores() {
	second := NewInMemoryStore()
	recorder := NewRecorder(s.logger, []Store{s.store, second})

	recorder.Record(Snapshot{CorrelationID: "corr-1", Stage: StageRequest})
	recorder.Close()

	for _, store := range []*InMemoryStore{s.store, second} {
		snaps, err := store.ListByCorrelation(context.Background(), "corr-1")
		s.Require().NoError(err)
		s.Len(snaps, 1)
	}
}

func (s *RecorderSuite) TestStoreFailureDoesNotPropagate() {
	recorder := NewRecorder(s.logger, []Store{failingStore{}, s.store})

	recorder.Record(Snapshot{CorrelationID: "corr-1", Stage: StageRequest})
	recorder.Close()

	// The healthy store still received the snapshot.
	snaps, err := s.store.ListByCorrelation(context.Background(), "corr-1")
	s.Require().NoError(err)
	s.Len(snaps, 1)
}

func (s *RecorderSuite) TestDroppedHookFires() {
	var drops atomic.Int64
	// A single shard with a full queue forces drops once the writer stalls.
	blocker := make(chan struct{})
	recorder := NewRecorder(s.logger,
		[]Store{blockingStore{release: blocker}},
		WithShards(1),
		WithDroppedHook(func() { drops.Add(1) }),
	)

	for i := 0; i < defaultShardDepth+10; i++ {
		recorder.Record(Snapshot{CorrelationID: "corr-1", Stage: StageRequest})
	}
	close(blocker)
	recorder.Close()

	s.Positive(drops.Load())
}

type failingStore struct{}

func (failingStore) Append(context.Context, Snapshot) error {
	return fmt.Errorf("store unavailable")
}

type blockingStore struct {
	release <-chan struct{}
}

func (b blockingStore) Append(context.Context, Snapshot) error {
	<-b.release
	return nil
}
