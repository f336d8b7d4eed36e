package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// AdapterParams sind die Metadaten eines LoRA-Adapters (adapter_config.json)
type AdapterParams struct {
	Architecture  string   `json:"base_model_architecture"`
	Rank          uint32   `json:"r"`
	LoraAlpha     uint32   `json:"lora_alpha"`
	LoraDropout   float32  `json:"lora_dropout"`
	TargetModules []string `json:"target_modules"`
}

// SaveAdapter schreibt adapter_config.json und adapter.gguf in dir
func SaveAdapter(dir string, params AdapterParams, ts []*AdapterTensor) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	bts, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "adapter_config.json"), bts, 0o644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "adapter.gguf"))
	if err != nil {
		return err
	}
	defer f.Close()

	kv := map[string]any{
		"general.architecture": params.Architecture,
		"general.type":         "adapter",
		"adapter.type":         "lora",
		"adapter.lora.alpha":   float32(params.LoraAlpha),
	}

	return WriteAdapter(f, kv, ts)
}
