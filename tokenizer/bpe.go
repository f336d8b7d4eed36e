// bpe.go - Byte-Level BPE Encoding/Decoding
//
// Enthaelt:
// - Encode: Text zu Token-IDs (Special Tokens, Pre-Tokenizer, BPE-Merges)
// - Decode: Token-IDs zu Text
// - encodeBPEMerge: BPE Merge-Algorithmus (GPT-2)
//
// Der Pre-Tokenizer verwendet das GPT-2 Split-Pattern; dessen negatives
// Lookahead wird von der Standardbibliothek nicht unterstuetzt, daher regexp2.

package tokenizer

import (
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
)

// GPT-2 Pre-Tokenizer Pattern
var pretokenizer = regexp2.MustCompile(`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`, regexp2.None)

// byteToRune ist die GPT-2 Byte-zu-Unicode Tabelle
var byteToRune [256]rune
var runeToByte map[rune]byte

func init() {
	runeToByte = make(map[rune]byte, 256)

	n := 0
	for i := 0; i < 256; i++ {
		b := byte(i)
		if (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF) {
			byteToRune[i] = rune(i)
		} else {
			byteToRune[i] = rune(256 + n)
			n++
		}
		runeToByte[byteToRune[i]] = b
	}
}

// Encode konvertiert Text zu Token-IDs.
// Special Tokens im Text werden als einzelne IDs encodiert.
func (t *Tokenizer) Encode(s string, addSpecial bool) []int32 {
	var ids []int32

	if addSpecial && t.addBOS && t.bosID >= 0 {
		ids = append(ids, t.bosID)
	}

	for _, part := range t.splitBySpecialTokens(s) {
		if id, ok := t.specialTokens[part]; ok {
			ids = append(ids, id)
			continue
		}

		for _, chunk := range pretokenize(part) {
			ids = t.encodeChunkInto(chunk, ids)
		}
	}

	if addSpecial && t.addEOS && t.eosID >= 0 {
		ids = append(ids, t.eosID)
	}

	return ids
}

// pretokenize zerlegt Text mit dem GPT-2 Pattern
func pretokenize(s string) []string {
	var chunks []string
	m, err := pretokenizer.FindStringMatch(s)
	for err == nil && m != nil {
		chunks = append(chunks, m.String())
		m, err = pretokenizer.FindNextMatch(m)
	}
	return chunks
}

// splitBySpecialTokens trennt Special Tokens als eigene Elemente ab
func (t *Tokenizer) splitBySpecialTokens(s string) []string {
	if len(t.specialTokens) == 0 {
		return []string{s}
	}

	// Laengste Tokens zuerst, damit greedy gematcht wird
	tokens := make([]string, 0, len(t.specialTokens))
	for tok := range t.specialTokens {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return len(tokens[i]) > len(tokens[j])
	})

	result := []string{s}
	for _, tok := range tokens {
		var next []string
		for _, part := range result {
			if _, isSpecial := t.specialTokens[part]; isSpecial {
				next = append(next, part)
				continue
			}
			for {
				i := strings.Index(part, tok)
				if i < 0 {
					break
				}
				if i > 0 {
					next = append(next, part[:i])
				}
				next = append(next, tok)
				part = part[i+len(tok):]
			}
			if part != "" {
				next = append(next, part)
			}
		}
		result = next
	}

	return result
}

// encodeChunkInto encodiert einen Pre-Tokenizer-Chunk und haengt die IDs an
func (t *Tokenizer) encodeChunkInto(s string, ids []int32) []int32 {
	if s == "" {
		return ids
	}

	// Bytes in GPT-2 Unicode-Darstellung konvertieren
	var sb strings.Builder
	sb.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		sb.WriteRune(byteToRune[s[i]])
	}
	encoded := sb.String()

	// Fast path: ganzer Chunk ist ein einzelnes Token
	if id, ok := t.vocab[encoded]; ok {
		return append(ids, id)
	}

	return t.encodeBPEMerge(encoded, ids)
}

// encodeBPEMerge wendet den BPE Merge-Algorithmus an.
// Es wird wiederholt das Paar mit dem niedrigsten Rank gemerged,
// bis kein Merge mehr moeglich ist.
func (t *Tokenizer) encodeBPEMerge(encoded string, ids []int32) []int32 {
	runes := []rune(encoded)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}

	for len(parts) > 1 {
		minRank := int(^uint(0) >> 1)
		minIdx := -1

		for i := 0; i < len(parts)-1; i++ {
			if rank, ok := t.merges[parts[i]+" "+parts[i+1]]; ok && rank < minRank {
				minRank = rank
				minIdx = i
			}
		}

		if minIdx < 0 {
			break
		}

		parts[minIdx] = parts[minIdx] + parts[minIdx+1]
		parts = append(parts[:minIdx+1], parts[minIdx+2:]...)
	}

	for _, p := range parts {
		if id, ok := t.vocab[p]; ok {
			ids = append(ids, id)
		}
		// unbekannte Teile werden verworfen; byte-level BPE kennt
		// normalerweise jedes Einzel-Byte-Token
	}

	return ids
}

// Decode konvertiert Token-IDs zurueck zu Text.
// Special Tokens werden uebersprungen, wenn skipSpecial gesetzt ist.
func (t *Tokenizer) Decode(ids []int32, skipSpecial bool) string {
	var sb strings.Builder
	var bytes []byte

	for _, id := range ids {
		s, ok := t.reverse[id]
		if !ok {
			continue
		}

		if _, special := t.specialTokens[s]; special {
			if !skipSpecial {
				sb.Write(bytes)
				bytes = bytes[:0]
				sb.WriteString(s)
			}
			continue
		}

		for _, r := range s {
			if b, ok := runeToByte[r]; ok {
				bytes = append(bytes, b)
			}
		}
	}

	sb.Write(bytes)
	return sb.String()
}
