package domain

import "time"

// Poll is a named, owned questionnaire compiled into one PollGraph.
type Poll struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	OwnerID   int64     `json:"owner_id" yaml:"owner_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	PollGraph `yaml:",inline"`
}

// Graph returns the compiled questionnaire of the poll.
func (p *Poll) Graph() *PollGraph {
	return &p.PollGraph
}

// OwnedBy reports whether ownerID may administer the poll.
func (p *Poll) OwnedBy(ownerID int64) bool {
	return p.OwnerID == ownerID
}

// Clone returns a deep copy of the poll, so stores never hand out shared graphs.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	next := *p
	next.PollGraph = p.PollGraph.Clone()
	return &next
}
