package ports

import "github.com/aretw0/branchpoll/pkg/domain"

// StructureParser compiles authored poll text into a graph.
// Every authoring dialect is its own implementation sharing this output contract.
type StructureParser interface {
	// Parse returns the compiled graph or the first *domain.CompileError.
	// It never returns a partial graph.
	Parse(text string) (*domain.PollGraph, error)
}
