// Package report renders poll tallies for terminals and markdown viewers.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// WriteText writes the report as an indented tree:
//
//	Root? (3 votes)
//	  Yes: 2 (66.7%)
//	    Sub? (2 votes)
//	      ...
func WriteText(w io.Writer, r *domain.Report) error {
	if _, err := fmt.Fprintf(w, "Poll #%d: %s\n", r.PollID, r.Name); err != nil {
		return err
	}
	if r.Root == nil {
		_, err := fmt.Fprintln(w, "No questions.")
		return err
	}
	return writeNode(w, r.Root, 0)
}

func writeNode(w io.Writer, n *domain.ReportNode, depth int) error {
	pad := strings.Repeat("  ", depth)
	if _, err := fmt.Fprintf(w, "%s%s (%s)\n", pad, n.Text, votes(n.Total)); err != nil {
		return err
	}
	for _, a := range n.Answers {
		if _, err := fmt.Fprintf(w, "%s  %s: %d (%.1f%%)\n", pad, a.Text, a.Count, a.Percent); err != nil {
			return err
		}
		if a.Branch != nil {
			if err := writeNode(w, a.Branch, depth+2); err != nil {
				return err
			}
		}
	}
	return nil
}

// Text returns WriteText as a string.
func Text(r *domain.Report) string {
	var sb strings.Builder
	_ = WriteText(&sb, r)
	return sb.String()
}

// Markdown renders the report as a heading and nested bullet lists,
// suitable for glamour.
func Markdown(r *domain.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", r.Name)
	if r.Root == nil {
		sb.WriteString("_No questions._\n")
		return sb.String()
	}
	markdownNode(&sb, r.Root, 0)
	return sb.String()
}

func markdownNode(sb *strings.Builder, n *domain.ReportNode, depth int) {
	pad := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s- **%s** _(%s)_\n", pad, n.Text, votes(n.Total))
	for _, a := range n.Answers {
		fmt.Fprintf(sb, "%s  - %s: %d (%.1f%%)\n", pad, a.Text, a.Count, a.Percent)
		if a.Branch != nil {
			markdownNode(sb, a.Branch, depth+2)
		}
	}
}

func votes(n int64) string {
	if n == 1 {
		return "1 vote"
	}
	return fmt.Sprintf("%d votes", n)
}
