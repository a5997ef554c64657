package compiler_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/branchpoll/internal/compiler"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nestedAnswers = "Root?\nYes\n  Sub?\n    LeafA\n    LeafB\nNo"

func TestCompile_NestedAnswersOneLevelDeeper(t *testing.T) {
	g, err := compiler.Compile(nestedAnswers)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())

	root := g.Questions[0]
	assert.Equal(t, "Root?", root.Text)
	assert.Equal(t, 0, root.Level)
	assert.Equal(t, []string{"Yes", "No"}, root.AnswerTexts())
	require.NotNil(t, root.Answers[0].NextQuestion)
	assert.Equal(t, 1, *root.Answers[0].NextQuestion)
	assert.True(t, root.Answers[1].Terminal())

	sub := g.Questions[1]
	assert.Equal(t, "Sub?", sub.Text)
	assert.Equal(t, 1, sub.Level)
	assert.Equal(t, []string{"LeafA", "LeafB"}, sub.AnswerTexts())
	assert.True(t, sub.Answers[0].Terminal())
	assert.True(t, sub.Answers[1].Terminal())

	assert.NoError(t, g.Validate())
}

func TestCompile_CanonicalLayout(t *testing.T) {
	text := `Pick a color?
Red
  Which shade?
  Dark
  Light
Blue
`
	g, err := compiler.Compile(text)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"Dark", "Light"}, g.Questions[1].AnswerTexts())

	idx, ok := g.ChildOf(0, "Red")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = g.ChildOf(0, "Blue")
	assert.False(t, ok)
}

func TestCompile_AttachesToLatestAnswer(t *testing.T) {
	text := "Q?\nA\nB\n  Follow?\n  X"
	g, err := compiler.Compile(text)
	require.NoError(t, err)

	assert.True(t, g.Questions[0].Answers[0].Terminal(), "A was appended before the nested question")
	require.NotNil(t, g.Questions[0].Answers[1].NextQuestion)
	assert.Equal(t, 1, *g.Questions[0].Answers[1].NextQuestion)
}

func TestCompile_LineHandling(t *testing.T) {
	text := "\r\nRoot?  \r\n\r\n   \nYes\r\n  Sub?\r\n  A\t\r\nNo\r\n"
	g, err := compiler.Compile(text)
	require.NoError(t, err)
	assert.Equal(t, "Root?", g.Questions[0].Text)
	assert.Equal(t, []string{"A"}, g.Questions[1].AnswerTexts())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind domain.ErrorKind
		line int
	}{
		{"empty", "", domain.KindEmptyStructure, 0},
		{"only blanks", "\n  \n\t\n", domain.KindEmptyStructure, 0},
		{"odd indent", "Root?\nYes\n   Sub?\n  A\nNo", domain.KindBadIndent, 3},
		{"tab indent", "Root?\nYes\n\tSub?", domain.KindBadIndent, 3},
		{"answer first", "Yes\nRoot?", domain.KindMissingRootQuestion, 1},
		{"indented root", "  Root?\n  Yes", domain.KindMissingRootQuestion, 1},
		{"second root", "Root?\nYes\nOther?\nNo", domain.KindMultipleRoots, 3},
		{"skipped level", "Root?\nYes\n    Deep?\n    A", domain.KindNoParentAtLevel, 3},
		{"nested before answers", "Root?\n  Sub?\n  A", domain.KindNoParentAnswer, 2},
		{"branch conflict", "Root?\nYes\n  One?\n  A\n  Two?\n  B", domain.KindBranchConflict, 5},
		{"answer too shallow", "Root?\n  Yes\nNo", domain.KindLevelMismatch, 3},
		{"answer too deep", "Root?\n    Yes", domain.KindLevelMismatch, 2},
		{"duplicate answer", "Root?\nYes\nNo\nYes", domain.KindDuplicateAnswer, 4},
		{"no answers", "Root?", domain.KindQuestionWithoutAnswers, 1},
		{"nested no answers", "Root?\nYes\n  Sub?\nNo", domain.KindQuestionWithoutAnswers, 3},
		{"long answer", "Root?\n" + strings.Repeat("a", 51), domain.KindTooLong, 2},
		{"long question", strings.Repeat("q", 300) + "?\nYes", domain.KindTooLong, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := compiler.Compile(tt.text)
			require.Error(t, err)
			assert.Nil(t, g)

			var ce *domain.CompileError
			require.True(t, errors.As(err, &ce), "expected *domain.CompileError, got %T", err)
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Equal(t, tt.line, ce.Line)
		})
	}
}

func TestCompile_BoundaryLengths(t *testing.T) {
	text := strings.Repeat("q", 299) + "?\n" + strings.Repeat("a", 50)
	g, err := compiler.Compile(text)
	require.NoError(t, err)
	assert.Len(t, g.Questions[0].Text, 300)
}

func TestCompile_FirstErrorWins(t *testing.T) {
	_, err := compiler.Compile("Root?\nYes\nYes\n   Bad?")
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindDuplicateAnswer, kind)
}

func TestParser_IndentUnit(t *testing.T) {
	p := compiler.NewParser(compiler.WithIndentUnit(4))
	assert.Equal(t, 4, p.IndentUnit())

	g, err := p.Parse("Root?\nYes\n    Sub?\n    A")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Questions[1].Level)

	_, err = p.Parse("Root?\nYes\n  Sub?\n  A")
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindBadIndent, kind)

	assert.Equal(t, compiler.DefaultIndentUnit, compiler.NewParser(compiler.WithIndentUnit(0)).IndentUnit())
}

func TestFormat_RoundTrip(t *testing.T) {
	inputs := []string{nestedAnswers, "Q?\nA\nB\n  Follow?\n  X"}
	for _, ex := range compiler.Examples() {
		inputs = append(inputs, ex.Text)
	}

	for _, text := range inputs {
		g, err := compiler.Compile(text)
		require.NoError(t, err, text)

		out := compiler.Format(g)
		again, err := compiler.Compile(out)
		require.NoError(t, err, out)
		assert.True(t, g.Equal(again), "round trip changed the graph:\n%s", out)

		// Canonical text is a fixed point.
		assert.Equal(t, out, compiler.Format(again))
	}
}

func TestFormat_Canonical(t *testing.T) {
	g, err := compiler.Compile(nestedAnswers)
	require.NoError(t, err)
	assert.Equal(t, "Root?\nYes\n  Sub?\n  LeafA\n  LeafB\nNo\n", compiler.Format(g))
	assert.Equal(t, "Root?\nYes\n    Sub?\n    LeafA\n    LeafB\nNo\n", compiler.FormatIndent(g, 4))
	assert.Empty(t, compiler.Format(&domain.PollGraph{}))
}

func TestExamples(t *testing.T) {
	all := compiler.Examples()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}

	ex, ok := compiler.LookupExample("nested")
	require.True(t, ok)
	g, err := compiler.Compile(ex.Text)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	_, ok = compiler.LookupExample("missing")
	assert.False(t, ok)
}
