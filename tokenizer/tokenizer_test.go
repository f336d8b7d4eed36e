// tokenizer_test.go - Tests fuer Laden, Encode/Decode und Padding
package tokenizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testTokenizerJSON = `{
	"added_tokens": [
		{"id": 4, "content": "<s>", "special": true},
		{"id": 5, "content": "</s>", "special": true}
	],
	"model": {
		"type": "BPE",
		"vocab": {"a": 0, "b": 1, "c": 2, "ab": 3},
		"merges": ["a b"]
	}
}`

// writeFixture legt ein minimales Checkpoint-Verzeichnis an
func writeFixture(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"tokenizer.json": testTokenizerJSON,
		"tokenizer_config.json": `{
			"add_bos_token": true,
			"add_eos_token": false,
			"bos_token": "<s>",
			"eos_token": {"content": "</s>"},
			"padding_side": "left",
			"model_max_length": 512
		}`,
	})

	tok, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if tok.VocabSize() != 6 {
		t.Errorf("VocabSize = %d, erwartet 6", tok.VocabSize())
	}
	if tok.EOSToken() != "</s>" || tok.EOS() != 5 {
		t.Errorf("EOS = %q/%d, erwartet </s>/5", tok.EOSToken(), tok.EOS())
	}
	if tok.PaddingSide != "left" {
		t.Errorf("PaddingSide = %q, erwartet left", tok.PaddingSide)
	}
	if tok.ModelMaxLength != 512 {
		t.Errorf("ModelMaxLength = %d, erwartet 512", tok.ModelMaxLength)
	}

	// Kein pad_token konfiguriert: Fallback auf eos
	if tok.PadID() != tok.EOS() {
		t.Errorf("PadID = %d, erwartet eos Fallback %d", tok.PadID(), tok.EOS())
	}
}

func TestLoadChatTemplate(t *testing.T) {
	jinja := "{% for message in messages %}<|im_start|>{{ message.role }}\n{{ message.content }}<|im_end|>\n{% endfor %}"
	dir := writeFixture(t, map[string]string{
		"tokenizer.json": testTokenizerJSON,
		"tokenizer_config.json": `{
			"chat_template": "{% for message in messages %}<|im_start|>{{ message.role }}\n{{ message.content }}<|im_end|>\n{% endfor %}"
		}`,
	})

	tok, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(jinja, tok.ChatTemplate); diff != "" {
		t.Errorf("ChatTemplate stimmt nicht (-erwartet +erhalten):\n%s", diff)
	}
}

func TestLoadMissingVocab(t *testing.T) {
	if _, err := Load(t.TempDir()); err != ErrVocabNotFound {
		t.Errorf("err = %v, erwartet ErrVocabNotFound", err)
	}
}

func TestGenerationConfigEOS(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"tokenizer.json":         testTokenizerJSON,
		"generation_config.json": `{"eos_token_id": [5, 2]}`,
	})

	tok, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if tok.EOS() != 5 {
		t.Errorf("EOS = %d, erwartet 5 (erste ID des Arrays)", tok.EOS())
	}
	if tok.EOSToken() != "</s>" {
		t.Errorf("EOSToken = %q, erwartet </s>", tok.EOSToken())
	}
}

func loadTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()

	dir := writeFixture(t, map[string]string{
		"tokenizer.json": testTokenizerJSON,
		"tokenizer_config.json": `{
			"add_bos_token": true,
			"bos_token": "<s>",
			"eos_token": "</s>"
		}`,
	})

	tok, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestEncode(t *testing.T) {
	tok := loadTestTokenizer(t)

	cases := []struct {
		name       string
		input      string
		addSpecial bool
		want       []int32
	}{
		{"merge", "abc", false, []int32{3, 2}},
		{"bos", "abc", true, []int32{4, 3, 2}},
		{"special inline", "abc</s>", false, []int32{3, 2, 5}},
		{"leer", "", false, nil},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Encode(tt.input, tt.addSpecial)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Encode(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tok := loadTestTokenizer(t)

	if got := tok.Decode([]int32{4, 3, 2, 5}, true); got != "abc" {
		t.Errorf("Decode skipSpecial = %q, erwartet abc", got)
	}
	if got := tok.Decode([]int32{4, 3, 2, 5}, false); got != "<s>abc</s>" {
		t.Errorf("Decode = %q, erwartet <s>abc</s>", got)
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	tok := loadTestTokenizer(t)

	input := "abcabc"
	got := tok.Decode(tok.Encode(input, false), true)
	if got != input {
		t.Errorf("Roundtrip = %q, erwartet %q", got, input)
	}
}

func TestTruncate(t *testing.T) {
	ids := []int32{1, 2, 3, 4, 5}

	if got := Truncate(ids, 3); len(got) != 3 {
		t.Errorf("Truncate Laenge = %d, erwartet 3", len(got))
	}
	if got := Truncate(ids, 10); len(got) != 5 {
		t.Errorf("Truncate Laenge = %d, erwartet 5 (unveraendert)", len(got))
	}
}

func TestPadBatch(t *testing.T) {
	seqs := [][]int32{{1, 2}, {3}}

	padded, mask := PadBatch(seqs, 9, "right")
	if diff := cmp.Diff([][]int32{{1, 2}, {3, 9}}, padded); diff != "" {
		t.Errorf("right padding mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]int32{{1, 1}, {1, 0}}, mask); diff != "" {
		t.Errorf("right mask mismatch (-want +got):\n%s", diff)
	}

	padded, mask = PadBatch(seqs, 9, "left")
	if diff := cmp.Diff([][]int32{{1, 2}, {9, 3}}, padded); diff != "" {
		t.Errorf("left padding mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]int32{{1, 1}, {0, 1}}, mask); diff != "" {
		t.Errorf("left mask mismatch (-want +got):\n%s", diff)
	}
}

func TestPadLabels(t *testing.T) {
	labels := PadLabels([][]int32{{1, 2}, {3}}, "right")
	if labels[1][1] != IgnoreIndex {
		t.Errorf("Label-Padding = %d, erwartet IgnoreIndex", labels[1][1])
	}
}
