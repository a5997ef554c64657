package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// EndNode is the id of the single terminal node every terminal answer points to.
const EndNode = "done"

// GraphOverlay contains respondent state to visualize on the graph.
type GraphOverlay struct {
	Visited []int
	Current *int
}

// OverlayFor builds the overlay of one session.
func OverlayFor(s *domain.SessionState) *GraphOverlay {
	o := &GraphOverlay{}
	for _, step := range s.History {
		o.Visited = append(o.Visited, step.Question)
	}
	if s.Status == domain.StatusAtQuestion {
		current := s.Current
		o.Current = &current
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the poll.
// Questions are drawn as [/Parallelogram/], in reachable order from the root,
// and each answer is an edge labelled with its text. Terminal answers lead to
// the ((end)) circle.
func GenerateMermaid(g *domain.PollGraph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	order := g.Reachable()
	terminal := false
	for _, i := range order {
		q := g.Questions[i]
		fmt.Fprintf(&sb, "    %s[/\"%s\"/]\n", nodeID(i), escape(q.Text))

		for _, a := range q.Answers {
			to := EndNode
			if a.NextQuestion != nil {
				to = nodeID(*a.NextQuestion)
			} else {
				terminal = true
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", nodeID(i), escape(a.Text), to)
		}
	}
	if terminal {
		fmt.Fprintf(&sb, "    %s((\"end\"))\n", EndNode)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[int]bool)
		for _, i := range overlay.Visited {
			if seen[i] || i < 0 || i >= g.Len() {
				continue
			}
			seen[i] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", nodeID(i))
		}
		if overlay.Current != nil {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(*overlay.Current))
		}
	}

	return sb.String()
}

func nodeID(i int) string {
	return fmt.Sprintf("q%d", i)
}

// escape swaps characters that would end a Mermaid label.
func escape(s string) string {
	return strings.NewReplacer(`"`, "'", "\n", " ").Replace(s)
}
