// cmd_test.go - Tests fuer CLI-Aufbau und Rezept-Laden
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alignforge/alignforge/config"
	"github.com/alignforge/alignforge/template"
	"github.com/alignforge/alignforge/tokenizer"
)

func TestNewCLICommands(t *testing.T) {
	root := NewCLI()

	want := []string{"sft", "dpo", "show", "runs", "tokenize"}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}

	for _, name := range want {
		found := false
		for _, g := range got {
			if g == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Kommando %q fehlt (vorhanden: %v)", name, got)
		}
	}
}

func TestEnvDocsInUsage(t *testing.T) {
	root := NewCLI()
	for _, c := range root.Commands() {
		if c.Name() != "sft" {
			continue
		}
		usage := c.UsageString()
		for _, env := range []string{"ALIGNFORGE_RUNS", "ALIGNFORGE_NUM_WORKERS", "ALIGNFORGE_DEBUG"} {
			if !strings.Contains(usage, env) {
				t.Errorf("sft Usage enthaelt %s nicht", env)
			}
		}
	}
}

func TestLoadRecipeStageMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	recipe := `
stage: dpo
model_cfgs:
  model_name_or_path: m
data_cfgs:
  train_datasets: d
`
	if err := os.WriteFile(path, []byte(recipe), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newSFTCmd()
	if _, err := loadRecipe(cmd, path, config.StageSFT); err == nil {
		t.Error("erwartet Fehler fuer Stage-Mismatch")
	}
	if _, err := loadRecipe(newDPOCmd(), path, config.StageDPO); err != nil {
		t.Errorf("DPO-Rezept via dpo: %v", err)
	}
}

func TestLoadRecipeOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	recipe := `
stage: sft
model_cfgs:
  model_name_or_path: m
data_cfgs:
  train_datasets: d
`
	if err := os.WriteFile(path, []byte(recipe), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newSFTCmd()
	if err := cmd.Flags().Set("epochs", "5"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("lr", "0.001"); err != nil {
		t.Fatal(err)
	}

	r, err := loadRecipe(cmd, path, config.StageSFT)
	if err != nil {
		t.Fatal(err)
	}
	if r.TrainCfgs.Epochs != 5 {
		t.Errorf("Epochs = %d, erwartet 5", r.TrainCfgs.Epochs)
	}
	if r.TrainCfgs.LearningRate != 0.001 {
		t.Errorf("LearningRate = %g, erwartet 0.001", r.TrainCfgs.LearningRate)
	}

	// negative Overrides lassen den Default stehen
	if err := cmd.Flags().Set("batch-size", "-1"); err != nil {
		t.Fatal(err)
	}
	r, err = loadRecipe(cmd, path, config.StageSFT)
	if err != nil {
		t.Fatal(err)
	}
	if r.TrainCfgs.PerDeviceTrainBatchSize != 4 {
		t.Errorf("PerDeviceTrainBatchSize = %d, erwartet Default 4", r.TrainCfgs.PerDeviceTrainBatchSize)
	}
}

func TestResolveTemplate(t *testing.T) {
	// chat_template eines chatml-Checkpoints
	jinja := "{% for message in messages %}{{'<|im_start|>' + message['role'] + '\n' + message['content'] + '<|im_end|>' + '\n'}}{% endfor %}{% if add_generation_prompt %}{{ '<|im_start|>assistant\n' }}{% endif %}"

	t.Run("explicit", func(t *testing.T) {
		recipe := &config.Recipe{}
		recipe.DataCfgs.TrainTemplate = "vicuna"

		tmpl, err := resolveTemplate(recipe, &tokenizer.Tokenizer{ChatTemplate: jinja})
		if err != nil {
			t.Fatal(err)
		}
		if !tmpl.Contains("USER:") {
			t.Error("train_template=vicuna wurde nicht bevorzugt")
		}
	})

	t.Run("detected", func(t *testing.T) {
		tmpl, err := resolveTemplate(&config.Recipe{}, &tokenizer.Tokenizer{ChatTemplate: jinja})
		if err != nil {
			t.Fatal(err)
		}
		if !tmpl.Contains("<|im_start|>") {
			t.Error("chatml wurde nicht aus dem Checkpoint erkannt")
		}
	})

	t.Run("fallback", func(t *testing.T) {
		tmpl, err := resolveTemplate(&config.Recipe{}, &tokenizer.Tokenizer{})
		if err != nil {
			t.Fatal(err)
		}
		if tmpl != template.DefaultTemplate {
			t.Error("ohne chat_template wird DefaultTemplate erwartet")
		}
	})

	t.Run("unmatched", func(t *testing.T) {
		tok := &tokenizer.Tokenizer{ChatTemplate: strings.Repeat("x", 500)}
		tmpl, err := resolveTemplate(&config.Recipe{}, tok)
		if err != nil {
			t.Fatal(err)
		}
		if tmpl != template.DefaultTemplate {
			t.Error("ohne passendes eingebautes Template wird DefaultTemplate erwartet")
		}
	})
}

func TestResolveModelDir(t *testing.T) {
	local := t.TempDir()
	recipe := &config.Recipe{}
	recipe.ModelCfgs.ModelNameOrPath = local
	if got := resolveModelDir(recipe); got != local {
		t.Errorf("resolveModelDir = %q, erwartet lokalen Pfad %q", got, local)
	}

	cache := t.TempDir()
	if err := os.MkdirAll(filepath.Join(cache, "org", "model"), 0o755); err != nil {
		t.Fatal(err)
	}

	recipe.ModelCfgs.ModelNameOrPath = "org/model"
	recipe.LoggerCfgs.CacheDir = cache
	if got, want := resolveModelDir(recipe), filepath.Join(cache, "org", "model"); got != want {
		t.Errorf("resolveModelDir = %q, erwartet Cache-Pfad %q", got, want)
	}

	// ohne cache_dir greift ALIGNFORGE_CACHE
	recipe.LoggerCfgs.CacheDir = ""
	t.Setenv("ALIGNFORGE_CACHE", cache)
	if got, want := resolveModelDir(recipe), filepath.Join(cache, "org", "model"); got != want {
		t.Errorf("resolveModelDir = %q, erwartet Cache-Pfad %q", got, want)
	}

	// unbekannter Name bleibt unveraendert
	recipe.ModelCfgs.ModelNameOrPath = "missing/model"
	if got := resolveModelDir(recipe); got != "missing/model" {
		t.Errorf("resolveModelDir = %q, erwartet missing/model", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("shortID = %q, erwartet 0123456789ab", got)
	}
	if got := shortID("short"); got != "short" {
		t.Errorf("shortID = %q, erwartet short", got)
	}
}
