// Package decoder turns per-frame label indices into text under the greedy
// CTC collapse rule: drop blanks, collapse consecutive repeats, but keep a
// repeated symbol that is separated by at least one blank.
package decoder

import "strings"

// Greedy is a greedy CTC decoder over a fixed vocabulary. The blank label
// is by convention one past the last vocabulary index.
type Greedy struct {
	blank  int
	labels []string
}

// NewGreedy builds a decoder for the given vocabulary of single characters.
func NewGreedy(vocabulary []string) *Greedy {
	labels := make([]string, len(vocabulary))
	copy(labels, vocabulary)
	return &Greedy{
		blank:  len(vocabulary),
		labels: labels,
	}
}

// Blank returns the blank label index.
func (g *Greedy) Blank() int { return g.blank }

// Classes returns the number of real (non-blank) classes.
func (g *Greedy) Classes() int { return len(g.labels) }

// Decode collapses one label sequence into text. Any sequence, including an
// empty one, is valid input; unknown indices are skipped.
func (g *Greedy) Decode(indices []int) string {
	var sb strings.Builder
	previous := g.blank
	for _, p := range indices {
		if p != g.blank && (p != previous || previous == g.blank) {
			if p >= 0 && p < len(g.labels) {
				sb.WriteString(g.labels[p])
			}
		}
		previous = p
	}
	return sb.String()
}

// DecodeBatch collapses one sequence per batch item.
func (g *Greedy) DecodeBatch(batch [][]int) []string {
	out := make([]string, len(batch))
	for i, indices := range batch {
		out[i] = g.Decode(indices)
	}
	return out
}

// DefaultVocabulary is the 28-character English grapheme set (space, a-z,
// apostrophe) used by the pretrained acoustic models; with the implicit
// blank this makes 29 classes.
func DefaultVocabulary() []string {
	vocab := make([]string, 0, 28)
	vocab = append(vocab, " ")
	for ch := 'a'; ch <= 'z'; ch++ {
		vocab = append(vocab, string(ch))
	}
	vocab = append(vocab, "'")
	return vocab
}
