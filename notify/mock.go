package notify

import (
	"context"
	"log/slog"
	"sync"
)

// SentMessage records one delivery accepted by the mock.
type SentMessage struct {
	Destination   string
	Code          string
	ElectionName  string
	CandidateName string
}

// MockNotifier records sends instead of delivering them. With no gateway
// configured the server runs on it, logging each code; tests read Sent and
// can force failures through Err.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []SentMessage
	Err  error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Send(_ context.Context, destination, code, electionName, candidateName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Sent = append(m.Sent, SentMessage{
		Destination:   destination,
		Code:          code,
		ElectionName:  electionName,
		CandidateName: candidateName,
	})
	slog.Info("mock code delivery", "destination", destination, "election", electionName)
	return nil
}

// LastCode returns the code of the most recent send, or "".
func (m *MockNotifier) LastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return ""
	}
	return m.Sent[len(m.Sent)-1].Code
}
