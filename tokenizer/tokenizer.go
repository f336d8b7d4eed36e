// tokenizer.go - Tokenizer-Laden aus HuggingFace-Dateien
// Enthaelt: Tokenizer-Struct, Load, Special-Token-Zugriff

package tokenizer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// IgnoreIndex markiert Label-Positionen, die nicht in den Loss eingehen.
const IgnoreIndex = -100

var ErrVocabNotFound = errors.New("tokenizer: no tokenizer.json found")

// Tokenizer enthaelt Vokabular, Merges und Special Tokens eines Checkpoints
type Tokenizer struct {
	vocab   map[string]int32
	reverse map[int32]string
	merges  map[string]int

	specialTokens map[string]int32

	bosToken string
	eosToken string
	padToken string

	bosID int32
	eosID int32
	padID int32

	addBOS bool
	addEOS bool

	// PaddingSide ist "left" oder "right" (aus tokenizer_config.json)
	PaddingSide string
	// ModelMaxLength ist die maximale Sequenzlaenge des Modells
	ModelMaxLength int
	// ChatTemplate ist das rohe Jinja-Template aus tokenizer_config.json
	ChatTemplate string
}

// Load laedt einen Tokenizer aus einem Checkpoint-Verzeichnis
func Load(dir string) (*Tokenizer, error) {
	return loadFS(os.DirFS(dir))
}

func loadFS(fsys fs.FS) (*Tokenizer, error) {
	t := &Tokenizer{
		vocab:          make(map[string]int32),
		reverse:        make(map[int32]string),
		merges:         make(map[string]int),
		specialTokens:  make(map[string]int32),
		bosID:          -1,
		eosID:          -1,
		padID:          -1,
		PaddingSide:    "right",
		ModelMaxLength: 2048,
	}

	if err := parseVocabulary(fsys, t); err != nil {
		return nil, err
	}

	// tokenizer_config.json parsen (bos/eos/pad, padding side, max length)
	if err := parseTokenizerConfig(fsys, t); err != nil {
		return nil, err
	}

	// generation_config.json parsen (kann eos ueberschreiben)
	if err := parseGenerationConfig(fsys, t); err != nil {
		return nil, err
	}

	if t.padID < 0 {
		// fallback ueblich bei Llama-artigen Checkpoints
		t.padToken, t.padID = t.eosToken, t.eosID
		slog.Debug("no pad token configured, falling back to eos", "id", t.padID)
	}

	slog.Debug("tokenizer loaded", "vocab", len(t.vocab), "merges", len(t.merges), "special", len(t.specialTokens))
	return t, nil
}

// VocabSize gibt die Groesse des Vokabulars zurueck
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

// EOSToken gibt den End-of-Sequence Token-Text zurueck
func (t *Tokenizer) EOSToken() string { return t.eosToken }

// BOSToken gibt den Begin-of-Sequence Token-Text zurueck
func (t *Tokenizer) BOSToken() string { return t.bosToken }

// EOS gibt die End-of-Sequence Token-ID zurueck
func (t *Tokenizer) EOS() int32 { return t.eosID }

// PadID gibt die Padding Token-ID zurueck
func (t *Tokenizer) PadID() int32 { return t.padID }

// IsSpecial meldet, ob die ID ein Special Token ist
func (t *Tokenizer) IsSpecial(id int32) bool {
	s, ok := t.reverse[id]
	if !ok {
		return false
	}
	_, special := t.specialTokens[s]
	return special
}

// TokenID gibt die ID fuer einen Token-Text zurueck
func (t *Tokenizer) TokenID(s string) (int32, error) {
	if id, ok := t.vocab[s]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("tokenizer: token %q not in vocabulary", s)
}
