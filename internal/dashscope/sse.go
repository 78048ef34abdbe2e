package dashscope

import "bytes"

var eventDelimiter = []byte("\n\n")

// eventBuffer reassembles a server-sent event byte stream into complete
// double-newline delimited blocks. Its only state is the trailing partial
// block, carried across feeds, so a `data: ` line bisected by a chunk
// boundary is reassembled before parsing.
type eventBuffer struct {
	rest []byte
}

// Feed appends p and returns every complete event block now available.
func (b *eventBuffer) Feed(p []byte) []string {
	b.rest = append(b.rest, p...)
	var blocks []string
	for {
		i := bytes.Index(b.rest, eventDelimiter)
		if i < 0 {
			return blocks
		}
		blocks = append(blocks, string(b.rest[:i]))
		b.rest = b.rest[i+len(eventDelimiter):]
	}
}
