package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain-backend/models"
)

func TestQueueSerializesCommits(t *testing.T) {
	var active, maxActive int
	queue := newCommitQueue(func(voterID, electionID, candidateID string) (*models.Receipt, error) {
		active++
		if active > maxActive {
			maxActive = active
		}
		time.Sleep(time.Millisecond)
		active--
		return &models.Receipt{ElectionID: electionID}, nil
	}, 8)
	queue.Start()
	defer queue.Stop()

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := queue.Submit(context.Background(), "v1", "e1", "c1")
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}

	// The commit func mutates shared counters without locking; only the
	// single worker may ever run it.
	assert.Equal(t, 1, maxActive)
}

func TestQueueSubmitAfterStop(t *testing.T) {
	queue := newCommitQueue(func(voterID, electionID, candidateID string) (*models.Receipt, error) {
		return &models.Receipt{}, nil
	}, 4)
	queue.Start()
	queue.Stop()

	_, err := queue.Submit(context.Background(), "v1", "e1", "c1")
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueStopAnswersBufferedRequests(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	queue := newCommitQueue(func(voterID, electionID, candidateID string) (*models.Receipt, error) {
		started <- struct{}{}
		<-release
		return &models.Receipt{}, nil
	}, 4)
	queue.Start()

	firstDone := make(chan error, 1)
	go func() {
		_, err := queue.Submit(context.Background(), "v1", "e1", "c1")
		firstDone <- err
	}()
	<-started // the worker is now blocked inside the first commit

	secondDone := make(chan error, 1)
	go func() {
		_, err := queue.Submit(context.Background(), "v2", "e1", "c1")
		secondDone <- err
	}()
	require.Eventually(t, func() bool { return len(queue.requests) == 1 },
		time.Second, time.Millisecond, "second request should sit in the buffer")

	stopDone := make(chan struct{})
	go func() {
		queue.Stop()
		close(stopDone)
	}()
	close(release)

	require.NoError(t, <-firstDone, "the in-flight commit runs to completion")

	// The buffered submitter must get an answer even though its context
	// never cancels: either the worker processed it before seeing the
	// shutdown, or the drain refused it.
	select {
	case err := <-secondDone:
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buffered request never answered after Stop")
	}

	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
