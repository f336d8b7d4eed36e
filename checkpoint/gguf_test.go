// gguf_test.go - Roundtrip-Tests fuer den GGUF-Adapter-Writer
package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadAdapter(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "adapter.gguf")
	f, err := os.Create(fn)
	if err != nil {
		t.Fatal(err)
	}

	kv := map[string]any{
		"general.architecture": "qwen2",
		"general.type":         "adapter",
		"adapter.type":         "lora",
		"adapter.lora.alpha":   float32(32),
		"adapter.lora.rank":    uint32(16),
		"adapter.merged":       false,
	}
	ts := []*AdapterTensor{
		{Name: "blk.0.attn_q.weight.lora_a", Shape: []uint64{4, 2}, Kind: KindF32, Data: []float32{1, 2, 3, 4, 5, 6, 7, 8}},
		{Name: "blk.0.attn_q.weight.lora_b", Shape: []uint64{2, 4}, Kind: KindF16, Data: []float32{0.5, -1, 0.25, 2, 0, 1, -0.5, 3}},
	}

	if err := WriteAdapter(f, kv, ts); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	info, err := ReadAdapter(fn)
	if err != nil {
		t.Fatal(err)
	}

	if got := info.KV["general.architecture"]; got != "qwen2" {
		t.Errorf("general.architecture = %v, erwartet qwen2", got)
	}
	if got := info.KV["adapter.lora.alpha"]; got != float32(32) {
		t.Errorf("adapter.lora.alpha = %v, erwartet 32", got)
	}
	if got := info.KV["adapter.lora.rank"]; got != uint32(16) {
		t.Errorf("adapter.lora.rank = %v, erwartet 16", got)
	}
	if got := info.KV["adapter.merged"]; got != false {
		t.Errorf("adapter.merged = %v, erwartet false", got)
	}

	if len(info.Tensors) != 2 {
		t.Fatalf("Tensors = %d, erwartet 2", len(info.Tensors))
	}

	// Tensor-Infos sind nach Name sortiert
	a, b := info.Tensors[0], info.Tensors[1]
	if a.Name != "blk.0.attn_q.weight.lora_a" || b.Name != "blk.0.attn_q.weight.lora_b" {
		t.Errorf("Tensor-Namen = %q, %q", a.Name, b.Name)
	}
	if len(a.Shape) != 2 || a.Shape[0] != 4 || a.Shape[1] != 2 {
		t.Errorf("Shape = %v, erwartet [4 2]", a.Shape)
	}
	if a.Kind != KindF32 || b.Kind != KindF16 {
		t.Errorf("Kinds = %d, %d", a.Kind, b.Kind)
	}
}

func TestWriteAdapterRequiresArchitecture(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "adapter.gguf"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := WriteAdapter(f, map[string]any{"general.type": "adapter"}, nil); err == nil {
		t.Error("erwartet Fehler ohne general.architecture")
	}
}

func TestAdapterTensorSize(t *testing.T) {
	f32 := &AdapterTensor{Kind: KindF32, Data: make([]float32, 6)}
	if f32.Size() != 24 {
		t.Errorf("F32 Size = %d, erwartet 24", f32.Size())
	}
	f16 := &AdapterTensor{Kind: KindF16, Data: make([]float32, 6)}
	if f16.Size() != 12 {
		t.Errorf("F16 Size = %d, erwartet 12", f16.Size())
	}
}

func TestGGUFPadding(t *testing.T) {
	cases := []struct{ offset, want int64 }{
		{0, 0},
		{1, 31},
		{32, 0},
		{33, 31},
		{63, 1},
	}
	for _, c := range cases {
		if got := ggufPadding(c.offset, 32); got != c.want {
			t.Errorf("ggufPadding(%d, 32) = %d, erwartet %d", c.offset, got, c.want)
		}
	}
}

func TestSaveAdapter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	params := AdapterParams{
		Architecture:  "llama",
		Rank:          8,
		LoraAlpha:     16,
		TargetModules: []string{"q_proj", "v_proj"},
	}
	ts := []*AdapterTensor{
		{Name: "bigram.weight", Shape: []uint64{2, 2}, Kind: KindF32, Data: []float32{1, 2, 3, 4}},
	}

	if err := SaveAdapter(dir, params, ts); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "adapter_config.json")); err != nil {
		t.Errorf("adapter_config.json fehlt: %v", err)
	}

	info, err := ReadAdapter(filepath.Join(dir, "adapter.gguf"))
	if err != nil {
		t.Fatal(err)
	}
	if got := info.KV["general.architecture"]; got != "llama" {
		t.Errorf("general.architecture = %v, erwartet llama", got)
	}
	if got := info.KV["adapter.lora.alpha"]; got != float32(16) {
		t.Errorf("adapter.lora.alpha = %v, erwartet 16", got)
	}
	if len(info.Tensors) != 1 || info.Tensors[0].Name != "bigram.weight" {
		t.Errorf("Tensors = %v", info.Tensors)
	}
}
