// Package vocab builds frequency-ordered token vocabularies and maps token
// sequences to integer ids.
package vocab

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	PadToken = "<PAD>"
	UnkToken = "<UNK>"

	PadID = 0
	UnkID = 1
)

// Vocabulary is a dense token <-> id mapping. Ids 0 and 1 are always PadToken
// and UnkToken; ids from 2 upwards follow descending corpus frequency.
type Vocabulary struct {
	ids    map[string]int
	tokens []string
	counts []int
}

// Build counts token frequencies over seqs and assigns ids. Tokens with equal
// frequency keep the order in which they were first seen.
func Build(seqs [][]string) *Vocabulary {
	counts := orderedmap.New[string, int]()
	for _, seq := range seqs {
		for _, tok := range seq {
			n, _ := counts.Get(tok)
			counts.Set(tok, n+1)
		}
	}

	type entry struct {
		token string
		count int
	}

	entries := make([]entry, 0, counts.Len())
	for pair := counts.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == PadToken || pair.Key == UnkToken {
			continue
		}

		entries = append(entries, entry{token: pair.Key, count: pair.Value})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].count > entries[j].count
	})

	tokens := make([]string, 0, len(entries)+2)
	tokens = append(tokens, PadToken, UnkToken)
	freq := make([]int, 2, len(entries)+2)
	for _, e := range entries {
		tokens = append(tokens, e.token)
		freq = append(freq, e.count)
	}

	v, _ := FromTokens(tokens)
	v.counts = freq

	return v
}

// FromTokens builds a vocabulary whose id i is tokens[i]. The first two
// tokens must be PadToken and UnkToken and no token may repeat.
func FromTokens(tokens []string) (*Vocabulary, error) {
	if len(tokens) < 2 || tokens[PadID] != PadToken || tokens[UnkID] != UnkToken {
		return nil, fmt.Errorf("vocab: first tokens must be %s and %s", PadToken, UnkToken)
	}

	ids := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if _, dup := ids[tok]; dup {
			return nil, fmt.Errorf("vocab: duplicate token %q at id %d", tok, i)
		}

		ids[tok] = i
	}

	return &Vocabulary{ids: ids, tokens: append([]string(nil), tokens...)}, nil
}

// Count returns how often the token with id occurred in the sequences the
// vocabulary was built from. Reserved ids and vocabularies loaded from disk
// report 0.
func (v *Vocabulary) Count(id int) int {
	if id < 0 || id >= len(v.counts) {
		return 0
	}

	return v.counts[id]
}

// Size returns the number of ids, reserved ones included.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// ID returns the id of token and whether it is present.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Lookup returns the id of token, or UnkID when the token is unknown.
func (v *Vocabulary) Lookup(token string) int {
	if id, ok := v.ids[token]; ok {
		return id
	}

	return UnkID
}

// Token returns the token for id, or UnkToken when id is out of range.
func (v *Vocabulary) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return UnkToken
	}

	return v.tokens[id]
}

// Tokens returns the tokens in id order.
func (v *Vocabulary) Tokens() []string {
	return append([]string(nil), v.tokens...)
}

// Encode maps tokens to ids, substituting UnkID for unknown tokens.
func (v *Vocabulary) Encode(tokens []string) []int {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		out[i] = v.Lookup(tok)
	}

	return out
}

// EncodeAll encodes every sequence in seqs.
func (v *Vocabulary) EncodeAll(seqs [][]string) [][]int {
	out := make([][]int, len(seqs))
	for i, seq := range seqs {
		out[i] = v.Encode(seq)
	}

	return out
}

// Decode maps ids back to tokens.
func (v *Vocabulary) Decode(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = v.Token(id)
	}

	return out
}

// Save writes the vocabulary as a JSON array of tokens in id order.
func (v *Vocabulary) Save(path string) error {
	data, err := json.Marshal(v.tokens)
	if err != nil {
		return fmt.Errorf("vocab: encode: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("vocab: write %s: %w", path, err)
	}

	return nil
}

// Load reads a vocabulary written by Save.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}

	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("vocab: decode %s: %w", path, err)
	}

	v, err := FromTokens(tokens)
	if err != nil {
		return nil, fmt.Errorf("vocab: load %s: %w", path, err)
	}

	return v, nil
}
