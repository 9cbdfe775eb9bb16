package dataset

// Pad returns a rectangular copy of seqs. Rows longer than maxLen are cut on
// the right and shorter rows are right-filled with vocab.PadID. maxLen <= 0
// selects the length of the longest row.
func Pad(seqs [][]int, maxLen int) [][]int {
	if maxLen <= 0 {
		maxLen = MaxLen(seqs)
	}

	out := make([][]int, len(seqs))
	for i, seq := range seqs {
		row := make([]int, maxLen) // zero value is vocab.PadID
		copy(row, seq)
		out[i] = row
	}

	return out
}

// MaxLen returns the length of the longest sequence.
func MaxLen(seqs [][]int) int {
	n := 0
	for _, seq := range seqs {
		n = max(n, len(seq))
	}

	return n
}
