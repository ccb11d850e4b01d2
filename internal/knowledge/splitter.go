package knowledge

import (
	"strings"
)

// Splitter cuts text into greedy windows of at most ChunkSize tokens. A token
// is a whitespace separated word. When a full window has a sentence end in its
// second half the window is cut there so chunks tend to end on sentences.
type Splitter struct {
	ChunkSize int
	// chunks shorter than this are merged into the previous chunk
	MinChunkChars int
}

func NewSplitter(chunkSize int) Splitter {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	return Splitter{ChunkSize: chunkSize, MinChunkChars: 20}
}

type piece struct {
	Text   string
	Tokens int
}

func (s Splitter) Split(text string) []piece {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var out []piece
	for start := 0; start < len(words); {
		end := min(start+s.ChunkSize, len(words))
		if end < len(words) {
			for i := end - 1; i >= start+(end-start)/2; i-- {
				if endsSentence(words[i]) {
					end = i + 1
					break
				}
			}
		}

		p := piece{Text: strings.Join(words[start:end], " "), Tokens: end - start}
		if n := len(out); n > 0 && len(p.Text) < s.MinChunkChars && out[n-1].Tokens+p.Tokens <= s.ChunkSize {
			out[n-1].Text += " " + p.Text
			out[n-1].Tokens += p.Tokens
		} else {
			out = append(out, p)
		}
		start = end
	}
	return out
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]`)
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}
