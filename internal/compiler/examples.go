package compiler

import "sort"

// Example is a ready-made poll structure shown to operators as a starting point.
type Example struct {
	Name string
	Text string
}

var examples = map[string]string{
	"simple": `Do you like coffee?
Yes
No
`,
	"nested": `Do you like coffee?
Yes
  How do you take it?
    Black
    With milk
No
  What do you drink instead?
    Tea
    Water
`,
	"deep": `Will you attend the meetup?
Yes
  Which day suits you?
  Saturday
    Morning or afternoon?
    Morning
    Afternoon
  Sunday
Maybe
No
`,
}

// Examples returns the built-in structures sorted by name.
func Examples() []Example {
	out := make([]Example, 0, len(examples))
	for name, text := range examples {
		out = append(out, Example{Name: name, Text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupExample returns the built-in structure with the given name.
func LookupExample(name string) (Example, bool) {
	text, ok := examples[name]
	if !ok {
		return Example{}, false
	}
	return Example{Name: name, Text: text}, true
}
