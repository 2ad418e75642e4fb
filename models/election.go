package models

// Election statuses. OPEN and ACTIVE both accept ballots.
const (
	ElectionStatusOpen   = "OPEN"
	ElectionStatusActive = "ACTIVE"
	ElectionStatusClosed = "CLOSED"
)

type Candidate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Party    string `json:"party"`
	ImageURL string `json:"image_url,omitempty"`
}

type Election struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Status     string      `json:"status"`
	StartTime  int64       `json:"start_time"`
	EndTime    int64       `json:"end_time,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// IsOpen reports whether the election currently accepts ballots.
func (e *Election) IsOpen() bool {
	return e.Status == ElectionStatusOpen || e.Status == ElectionStatusActive
}

// Candidate returns the candidate with the given id, if present.
func (e *Election) Candidate(id string) (Candidate, bool) {
	for _, c := range e.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}
