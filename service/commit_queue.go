package service

import (
	"context"
	"errors"
	"sync"

	"votechain-backend/models"
)

// ErrQueueClosed is returned for submissions after shutdown.
var ErrQueueClosed = errors.New("commit queue closed")

// commitRequest is one queued ballot commit.
type commitRequest struct {
	voterID     string
	electionID  string
	candidateID string
	resultCh    chan commitResult
}

type commitResult struct {
	receipt *models.Receipt
	err     error
}

// commitFunc performs one mine-and-append cycle. It runs only on the queue
// worker goroutine.
type commitFunc func(voterID, electionID, candidateID string) (*models.Receipt, error)

// commitQueue serializes every "read latest block → mine → append" critical
// section on a single worker, keeping the CPU-bound mining search off
// request-handling goroutines and enforcing the single-writer invariant.
type commitQueue struct {
	commit   commitFunc
	requests chan commitRequest
	shutdown chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func newCommitQueue(commit commitFunc, size int) *commitQueue {
	if size <= 0 {
		size = 16
	}
	return &commitQueue{
		commit:   commit,
		requests: make(chan commitRequest, size),
		shutdown: make(chan struct{}),
	}
}

// Start launches the single commit worker.
func (q *commitQueue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop drains no further requests and waits for the in-flight commit. An
// in-flight commit always runs to completion; there is no cancellation once
// committing begins.
func (q *commitQueue) Stop() {
	q.once.Do(func() { close(q.shutdown) })
	q.wg.Wait()
}

// Submit enqueues a commit and waits for its result. The context only
// bounds the wait for a worker slot and the wait for the result; it does
// not cancel a commit already executing.
func (q *commitQueue) Submit(ctx context.Context, voterID, electionID, candidateID string) (*models.Receipt, error) {
	request := commitRequest{
		voterID:     voterID,
		electionID:  electionID,
		candidateID: candidateID,
		resultCh:    make(chan commitResult, 1),
	}

	select {
	case q.requests <- request:
	case <-q.shutdown:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-request.resultCh:
		return result.receipt, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *commitQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case request := <-q.requests:
			receipt, err := q.commit(request.voterID, request.electionID, request.candidateID)
			request.resultCh <- commitResult{receipt: receipt, err: err}
		case <-q.shutdown:
			q.drain()
			return
		}
	}
}

// drain answers requests still buffered at shutdown so no submitter is left
// waiting on a result that will never come.
func (q *commitQueue) drain() {
	for {
		select {
		case request := <-q.requests:
			request.resultCh <- commitResult{err: ErrQueueClosed}
		default:
			return
		}
	}
}
