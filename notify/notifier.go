// Package notify delivers one-time codes to voters. Delivery is an external
// collaborator: the core only cares that a send succeeds or fails within its
// timeout.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Notifier delivers a one-time code with context naming the election and
// the chosen candidate. A failed send must abort code issuance.
type Notifier interface {
	Send(ctx context.Context, destination, code, electionName, candidateName string) error
}

// HTTPNotifier posts a mail-gateway JSON payload. The client timeout is a
// hard bound; a hung gateway must not stall the issuance step.
type HTTPNotifier struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

func NewHTTPNotifier(endpoint, apiKey string, timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     "noreply@votechain.local",
		client:   &http.Client{Timeout: timeout},
	}
}

type mailMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (n *HTTPNotifier) Send(ctx context.Context, destination, code, electionName, candidateName string) error {
	message := mailMessage{
		From:    n.from,
		To:      destination,
		Subject: "Confirm Your Vote - " + electionName,
		Text: fmt.Sprintf(
			"You are about to cast a vote in %s for %s.\nYour one-time code is: %s\nThis code expires in 2 minutes.",
			electionName, candidateName, code),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode mail message: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	response, err := n.client.Do(request)
	if err != nil {
		return fmt.Errorf("mail gateway unreachable: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("mail gateway returned status %d", response.StatusCode)
	}
	return nil
}

// MaskEmail hides most of the local part for user-visible responses, e.g.
// ann***@domain.com.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return email
	}
	name, domain := email[:at], email[at+1:]
	if name == "" {
		return email
	}

	var masked string
	if len(name) > 3 {
		masked = name[:3] + strings.Repeat("*", len(name)-3)
	} else {
		masked = name[:1] + strings.Repeat("*", len(name)-1)
	}
	return masked + "@" + domain
}
