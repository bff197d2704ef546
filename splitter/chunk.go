package splitter

import (
	"strings"

	"github.com/ragcore/ragcore"
)

// chunker implements the chunking algorithm of section 4.2, shared by
// every content-type splitter variant. It operates purely on chapter
// content; chapter-level cutting is the concern of each variant.
type chunker struct {
	counter TokenCounter
	cfg     ragcore.ChunkConfig
}

// chunkContent implements steps (ii)-(vi) of the chunking algorithm:
// short content is emitted whole; otherwise Markdown subtitles (if
// present) define candidate blocks, else paragraphs-then-sentences are
// packed up to max_block_chars; undersized blocks are merged with their
// following neighbor when the merge still fits the ideal budget plus
// slack.
func (c chunker) chunkContent(content string) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if c.counter.Count(content) <= c.cfg.ChunkIdealTokens {
		return []Chunk{{Text: content, Index: 0, Kind: ChunkKindChunk}}
	}

	var blocks []string
	if subtitled := splitBySubtitles(content); len(subtitled) > 1 {
		blocks = subtitled
	} else {
		blocks = c.packParagraphs(content)
	}

	blocks = c.mergeUndersized(blocks)

	chunks := make([]Chunk, 0, len(blocks))
	for i, b := range blocks {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		chunks = append(chunks, Chunk{Text: b, Index: i, Kind: ChunkKindChunk})
	}
	return chunks
}

// splitBySubtitles cuts content at each Markdown ## or ### heading,
// keeping the heading line attached to the block it introduces.
func splitBySubtitles(content string) []string {
	lines := strings.Split(content, "\n")
	var blocks []string
	var cur strings.Builder
	started := false

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			blocks = append(blocks, s)
		}
		cur.Reset()
	}

	for _, line := range lines {
		level := headingLevel(line)
		if level == 2 || level == 3 {
			if started {
				flush()
			}
			started = true
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush()
	return blocks
}

// packParagraphs packs paragraphs, falling back to sentences for any
// paragraph that alone exceeds the per-block character budget, into
// blocks of at most max_tokens * 4 characters. A single sentence longer
// than that budget is not cut further and becomes an oversized block.
func (c chunker) packParagraphs(content string) []string {
	maxBlockChars := c.cfg.ChunkMaxTokens * 4
	var blocks []string
	var cur strings.Builder

	appendPiece := func(piece string) {
		if cur.Len() > 0 && cur.Len()+len(piece)+2 > maxBlockChars {
			blocks = append(blocks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(piece)
	}

	for _, para := range splitIntoParagraphs(content) {
		if len(para) <= maxBlockChars {
			appendPiece(para)
			continue
		}
		for _, sent := range splitIntoSentences(para) {
			appendPiece(sent)
		}
	}
	if cur.Len() > 0 {
		blocks = append(blocks, cur.String())
	}
	return blocks
}

// mergeUndersized merges any block shorter than min_tokens * 4 characters
// into its following neighbor, provided the combined size does not exceed
// ideal_chunk * 4 + 200 characters. The final block is allowed to exceed
// the ideal by whatever remainder is left.
func (c chunker) mergeUndersized(blocks []string) []string {
	minChars := c.cfg.ChunkMinTokens * 4
	mergeLimit := c.cfg.ChunkIdealTokens*4 + 200

	var out []string
	i := 0
	for i < len(blocks) {
		block := blocks[i]
		for len(block) < minChars && i+1 < len(blocks) {
			candidate := block + "\n\n" + blocks[i+1]
			if len(candidate) > mergeLimit {
				break
			}
			block = candidate
			i++
		}
		out = append(out, block)
		i++
	}
	return out
}
