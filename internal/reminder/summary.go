package reminder

import "encoding/json"

// Result is the outcome for one block. A failed result may still carry an
// EmailID when the send succeeded but marking the block did not.
type Result struct {
	BlockID string `json:"blockId"`
	Email   string `json:"email,omitempty"`
	Success bool   `json:"success"`
	EmailID string `json:"emailId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary aggregates one invocation. Failed counts blocks whose send or
// mark step errored; Successful is the rest.
type Summary struct {
	TotalBlocks int
	Successful  int
	Failed      int
	Results     []Result
}

func newSummary(results []Result) *Summary {
	s := &Summary{TotalBlocks: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}

const (
	messageNone     = "No reminders to send"
	messageComplete = "Reminder processing complete"
)

// MarshalJSON emits the short {message, count} shape when nothing was
// processed and the full report otherwise.
func (s Summary) MarshalJSON() ([]byte, error) {
	if s.TotalBlocks == 0 {
		return json.Marshal(struct {
			Message string `json:"message"`
			Count   int    `json:"count"`
		}{messageNone, 0})
	}

	results := s.Results
	if results == nil {
		results = []Result{}
	}
	return json.Marshal(struct {
		Message     string   `json:"message"`
		TotalBlocks int      `json:"totalBlocks"`
		Successful  int      `json:"successful"`
		Failed      int      `json:"failed"`
		Results     []Result `json:"results"`
	}{messageComplete, s.TotalBlocks, s.Successful, s.Failed, results})
}
