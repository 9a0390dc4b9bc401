package composer

import (
	"bytes"
	"context"
	"fmt"
)

// Ensure StubComposer implements DocumentComposer
var _ DocumentComposer = (*StubComposer)(nil)

// StubComposer concatenates page bytes with markers instead of producing a
// real PDF. Tests assert on page order without needing parseable inputs.
type StubComposer struct{}

// NewStubComposer creates a new StubComposer
func NewStubComposer() *StubComposer {
	return &StubComposer{}
}

// Merge concatenates pages with index markers
func (c *StubComposer) Merge(ctx context.Context, pages [][]byte) ([]byte, error) {
	if len(pages) == 0 {
		return nil, NewComposeError("no pages to merge", nil)
	}

	var out bytes.Buffer
	for i, page := range pages {
		if len(page) == 0 {
			return nil, NewComposeError(fmt.Sprintf("page %d is empty", i), nil)
		}
		fmt.Fprintf(&out, "--page %d--\n", i)
		out.Write(page)
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}
