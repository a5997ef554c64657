package domain

// Counts maps question index to answer text to vote count for one poll.
type Counts map[int]map[string]int64

// Get returns the count of one (question, answer) pair, zero when absent.
func (c Counts) Get(question int, answer string) int64 {
	if c == nil {
		return 0
	}
	return c[question][answer]
}

// Total returns the number of votes cast at one question.
func (c Counts) Total(question int) int64 {
	var total int64
	for _, n := range c[question] {
		total += n
	}
	return total
}

// Report is the tally of a poll laid out along the graph.
type Report struct {
	PollID int64       `json:"poll_id"`
	Name   string      `json:"name"`
	Root   *ReportNode `json:"root,omitempty"`
}

// ReportNode is one question of the report.
type ReportNode struct {
	Question int            `json:"question"`
	Text     string         `json:"text"`
	Total    int64          `json:"total"`
	Answers  []ReportAnswer `json:"answers"`
}

// ReportAnswer is one answer with its votes. Branch is set only when the
// branch question received at least one vote.
type ReportAnswer struct {
	Text    string      `json:"text"`
	Count   int64       `json:"count"`
	Percent float64     `json:"percent"`
	Branch  *ReportNode `json:"branch,omitempty"`
}
