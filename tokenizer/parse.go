// parse.go - Parser fuer tokenizer.json, tokenizer_config.json, generation_config.json
// Enthaelt: parseVocabulary, parseMerges, parseTokenizerConfig, parseGenerationConfig

package tokenizer

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
)

// tokenizerJSON repraesentiert die tokenizer.json Struktur
type tokenizerJSON struct {
	AddedTokens []addedToken `json:"added_tokens"`
	Model       struct {
		Type   string           `json:"type"`
		Vocab  map[string]int32 `json:"vocab"`
		Merges json.RawMessage  `json:"merges"`
	} `json:"model"`
}

// addedToken repraesentiert ein einzelnes Added Token
type addedToken struct {
	ID      int32  `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// parseVocabulary parst Vokabular und Merges aus tokenizer.json
func parseVocabulary(fsys fs.FS, t *Tokenizer) error {
	f, err := fsys.Open("tokenizer.json")
	if errors.Is(err, os.ErrNotExist) {
		return ErrVocabNotFound
	} else if err != nil {
		return err
	}
	defer f.Close()

	var tt tokenizerJSON
	if err := json.NewDecoder(f).Decode(&tt); err != nil {
		return err
	}

	for s, id := range tt.Model.Vocab {
		t.vocab[s] = id
		t.reverse[id] = s
	}

	for _, at := range tt.AddedTokens {
		t.vocab[at.Content] = at.ID
		t.reverse[at.ID] = at.Content
		if at.Special {
			t.specialTokens[at.Content] = at.ID
		}
	}

	return parseMerges(&tt, t)
}

// parseMerges parst die Merges aus tokenizer.json
// (kann []string oder [][]string sein)
func parseMerges(tt *tokenizerJSON, t *Tokenizer) error {
	if len(tt.Model.Merges) == 0 {
		return nil
	}

	var flat []string
	if err := json.Unmarshal(tt.Model.Merges, &flat); err == nil {
		for i, m := range flat {
			t.merges[m] = i
		}
		return nil
	}

	var nested [][]string
	if err := json.Unmarshal(tt.Model.Merges, &nested); err != nil {
		return errors.New("could not parse tokenizer merges. expected []string or [][]string")
	}

	for i, m := range nested {
		t.merges[strings.Join(m, " ")] = i
	}

	return nil
}

// tokenizerConfig repraesentiert tokenizer_config.json
// bos/eos/pad koennen Strings oder {content: ...} Objekte sein
type tokenizerConfig struct {
	AddBOSToken    *bool           `json:"add_bos_token"`
	AddEOSToken    *bool           `json:"add_eos_token"`
	BOSToken       json.RawMessage `json:"bos_token"`
	EOSToken       json.RawMessage `json:"eos_token"`
	PadToken       json.RawMessage `json:"pad_token"`
	PaddingSide    string          `json:"padding_side"`
	ModelMaxLength float64         `json:"model_max_length"`
	ChatTemplate   string          `json:"chat_template"`
}

// parseTokenizerConfig parst tokenizer_config.json, falls vorhanden
func parseTokenizerConfig(fsys fs.FS, t *Tokenizer) error {
	bts, err := fs.ReadFile(fsys, "tokenizer_config.json")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	var cfg tokenizerConfig
	if err := json.Unmarshal(bts, &cfg); err != nil {
		return err
	}

	if cfg.AddBOSToken != nil {
		t.addBOS = *cfg.AddBOSToken
	}
	if cfg.AddEOSToken != nil {
		t.addEOS = *cfg.AddEOSToken
	}
	if cfg.PaddingSide == "left" || cfg.PaddingSide == "right" {
		t.PaddingSide = cfg.PaddingSide
	}
	// HF verwendet sehr grosse Sentinel-Werte fuer "unbegrenzt"
	if cfg.ModelMaxLength > 0 && cfg.ModelMaxLength < 1e9 {
		t.ModelMaxLength = int(cfg.ModelMaxLength)
	}
	t.ChatTemplate = cfg.ChatTemplate

	if s := tokenContent(cfg.BOSToken); s != "" {
		t.bosToken = s
		if id, ok := t.vocab[s]; ok {
			t.bosID = id
		}
	}
	if s := tokenContent(cfg.EOSToken); s != "" {
		t.eosToken = s
		if id, ok := t.vocab[s]; ok {
			t.eosID = id
		}
	}
	if s := tokenContent(cfg.PadToken); s != "" {
		t.padToken = s
		if id, ok := t.vocab[s]; ok {
			t.padID = id
		}
	}

	return nil
}

// tokenContent extrahiert den Token-Text aus String- oder Objekt-Form
func tokenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Content
	}

	return ""
}

// generationConfig repraesentiert generation_config.json
// eos_token_id kann Zahl oder Array sein
type generationConfig struct {
	BOSTokenID json.RawMessage `json:"bos_token_id"`
	EOSTokenID json.RawMessage `json:"eos_token_id"`
	PadTokenID json.RawMessage `json:"pad_token_id"`
}

// parseGenerationConfig parst generation_config.json, falls vorhanden
func parseGenerationConfig(fsys fs.FS, t *Tokenizer) error {
	bts, err := fs.ReadFile(fsys, "generation_config.json")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	var cfg generationConfig
	if err := json.Unmarshal(bts, &cfg); err != nil {
		return err
	}

	if id, ok := firstTokenID(cfg.BOSTokenID); ok && t.bosID < 0 {
		t.bosID = id
		t.bosToken = t.reverse[id]
	}
	if id, ok := firstTokenID(cfg.EOSTokenID); ok && t.eosID < 0 {
		t.eosID = id
		t.eosToken = t.reverse[id]
	}
	if id, ok := firstTokenID(cfg.PadTokenID); ok && t.padID < 0 {
		t.padID = id
		t.padToken = t.reverse[id]
	}

	return nil
}

// firstTokenID liest eine Token-ID aus Zahl- oder Array-Form
func firstTokenID(raw json.RawMessage) (int32, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var id int32
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, true
	}

	var ids []int32
	if err := json.Unmarshal(raw, &ids); err == nil && len(ids) > 0 {
		return ids[0], true
	}

	return 0, false
}
