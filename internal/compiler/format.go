package compiler

import (
	"strings"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// Format serializes a graph into canonical indented text: every answer sits
// at its question's level and is immediately followed by its branch subtree.
// Compiling the output yields a graph equal to g.
func Format(g *domain.PollGraph) string {
	return FormatIndent(g, DefaultIndentUnit)
}

// FormatIndent is Format with a custom indent unit.
func FormatIndent(g *domain.PollGraph, unit int) string {
	if g.Len() == 0 {
		return ""
	}
	if unit < 1 {
		unit = DefaultIndentUnit
	}

	var sb strings.Builder
	visited := make(map[int]bool, g.Len())
	var write func(i, depth int)
	write = func(i, depth int) {
		if visited[i] || i < 0 || i >= g.Len() {
			return
		}
		visited[i] = true

		pad := strings.Repeat(" ", depth*unit)
		q := g.Questions[i]
		sb.WriteString(pad + q.Text + "\n")
		for _, a := range q.Answers {
			sb.WriteString(pad + a.Text + "\n")
			if a.NextQuestion != nil {
				write(*a.NextQuestion, depth+1)
			}
		}
	}
	write(0, 0)
	return sb.String()
}
