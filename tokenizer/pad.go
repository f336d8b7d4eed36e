// pad.go - Padding und Truncation fuer Batches
package tokenizer

// Truncate kuerzt eine Sequenz auf maxLen Tokens.
// maxLen <= 0 laesst die Sequenz unveraendert.
func Truncate(ids []int32, maxLen int) []int32 {
	if maxLen <= 0 || len(ids) <= maxLen {
		return ids
	}
	return ids[:maxLen]
}

// PadBatch padded Sequenzen auf gemeinsame Laenge und baut die Attention-Mask.
// side ist "left" oder "right"; Maske ist 1 auf echten Tokens, 0 auf Padding.
func PadBatch(seqs [][]int32, padID int32, side string) (padded [][]int32, mask [][]int32) {
	maxLen := 0
	for _, s := range seqs {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}

	padded = make([][]int32, len(seqs))
	mask = make([][]int32, len(seqs))

	for i, s := range seqs {
		row := make([]int32, maxLen)
		m := make([]int32, maxLen)

		if side == "left" {
			offset := maxLen - len(s)
			for j := range row[:offset] {
				row[j] = padID
			}
			copy(row[offset:], s)
			for j := offset; j < maxLen; j++ {
				m[j] = 1
			}
		} else {
			copy(row, s)
			for j := len(s); j < maxLen; j++ {
				row[j] = padID
			}
			for j := range s {
				m[j] = 1
			}
		}

		padded[i] = row
		mask[i] = m
	}

	return padded, mask
}

// PadLabels padded Label-Sequenzen mit IgnoreIndex statt pad id.
func PadLabels(seqs [][]int32, side string) [][]int32 {
	maxLen := 0
	for _, s := range seqs {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}

	padded := make([][]int32, len(seqs))
	for i, s := range seqs {
		row := make([]int32, maxLen)
		for j := range row {
			row[j] = IgnoreIndex
		}
		if side == "left" {
			copy(row[maxLen-len(s):], s)
		} else {
			copy(row, s)
		}
		padded[i] = row
	}

	return padded
}
