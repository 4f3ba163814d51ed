package ai

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	maxChunkChars = 2000
	minChunkChars = 40
)

// ChunkText splits extracted document text into embedding-sized pieces.
// The text is parsed as markdown so headings stay attached to the prose
// that follows them; plain extracted text degrades to paragraph splits.
func ChunkText(input string) []string {
	source := []byte(input)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var chunks []string
	var current []string
	var currentLen int
	var heading string

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, "\n\n")
		if heading != "" {
			content = heading + "\n" + content
		}
		if len(content) >= minChunkChars {
			chunks = append(chunks, content)
		}
		current = nil
		currentLen = 0
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		segment := blockText(node, source)
		if segment == "" {
			continue
		}
		if _, ok := node.(*ast.Heading); ok {
			flush()
			heading = segment
			continue
		}
		for _, piece := range splitLong(segment, maxChunkChars) {
			if currentLen+len(piece) > maxChunkChars {
				flush()
			}
			current = append(current, piece)
			currentLen += len(piece)
		}
	}
	flush()

	if len(chunks) == 0 && len(strings.TrimSpace(input)) >= minChunkChars {
		chunks = splitLong(strings.TrimSpace(input), maxChunkChars)
	}
	return chunks
}

func blockText(node ast.Node, source []byte) string {
	var sb strings.Builder
	switch typed := node.(type) {
	case *ast.FencedCodeBlock:
		for i := 0; i < typed.Lines().Len(); i++ {
			line := typed.Lines().At(i)
			sb.Write(line.Value(source))
		}
	default:
		_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			if textNode, ok := n.(*ast.Text); ok {
				sb.Write(textNode.Segment.Value(source))
				sb.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		})
	}
	return strings.TrimSpace(sb.String())
}

func splitLong(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var parts []string
	for len(s) > max {
		cut := max
		if idx := strings.LastIndexByte(s[:max], ' '); idx > max/2 {
			cut = idx
		}
		parts = append(parts, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
