// config_test.go - Tests fuer Rezept-Laden, Defaults und Validierung
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalRecipe = `
stage: sft
model_cfgs:
  model_name_or_path: qwen2-1.5b
data_cfgs:
  train_datasets: data/train.jsonl
`

func writeRecipe(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	r, err := Load(writeRecipe(t, minimalRecipe))
	require.NoError(t, err)

	assert.Equal(t, StageSFT, r.Stage)
	assert.Equal(t, ModalityTextToText, r.Modality)
	assert.Equal(t, 3, r.TrainCfgs.Epochs)
	assert.Equal(t, 2e-5, r.TrainCfgs.LearningRate)
	assert.Equal(t, "cosine", r.TrainCfgs.LRSchedulerType)
	assert.Equal(t, "right", r.DataCfgs.PaddingSide)
	assert.Equal(t, 2048, r.ModelCfgs.ModelMaxLength)
	assert.Equal(t, 16, r.LoraCfgs.R)
	assert.Equal(t, 0.1, r.TrainCfgs.Beta)
}

func TestLoadOverridesDefaults(t *testing.T) {
	r, err := Load(writeRecipe(t, `
stage: dpo
modality: text_image_to_text
model_cfgs:
  model_name_or_path: llava-1.5-7b
data_cfgs:
  train_datasets: data/pref.jsonl
  padding_side: left
train_cfgs:
  epochs: 1
  learning_rate: 5.0e-7
  beta: 0.2
`))
	require.NoError(t, err)

	assert.Equal(t, StageDPO, r.Stage)
	assert.Equal(t, ModalityTextImageToText, r.Modality)
	assert.Equal(t, 1, r.TrainCfgs.Epochs)
	assert.Equal(t, 5.0e-7, r.TrainCfgs.LearningRate)
	assert.Equal(t, 0.2, r.TrainCfgs.Beta)
	assert.Equal(t, "left", r.DataCfgs.PaddingSide)
	// nicht gesetzte Felder behalten ihre Defaults
	assert.Equal(t, 4, r.TrainCfgs.PerDeviceTrainBatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Recipe)
		want   string
	}{
		{"stage", func(r *Recipe) { r.Stage = "rlhf" }, "unknown stage"},
		{"modality", func(r *Recipe) { r.Modality = "audio" }, "unknown modality"},
		{"model", func(r *Recipe) { r.ModelCfgs.ModelNameOrPath = "" }, "model_name_or_path"},
		{"datasets", func(r *Recipe) { r.DataCfgs.TrainDatasets = "" }, "train_datasets"},
		{"epochs", func(r *Recipe) { r.TrainCfgs.Epochs = 0 }, "epochs"},
		{"lr", func(r *Recipe) { r.TrainCfgs.LearningRate = -1 }, "learning_rate"},
		{"scheduler", func(r *Recipe) { r.TrainCfgs.LRSchedulerType = "step" }, "lr_scheduler_type"},
		{"padding", func(r *Recipe) { r.DataCfgs.PaddingSide = "middle" }, "padding_side"},
		{"beta", func(r *Recipe) {
			r.Stage = StageDPO
			r.TrainCfgs.Beta = 0
		}, "beta"},
		{"bnb", func(r *Recipe) {
			r.BnbCfgs.LoadIn4Bit = true
			r.BnbCfgs.LoadIn8Bit = true
		}, "mutually exclusive"},
		{"cameras", func(r *Recipe) {
			r.Modality = ModalityTextVideoToAction
			r.SensorCfgs.Cameras = nil
		}, "cameras"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := defaultRecipe()
			r.ModelCfgs.ModelNameOrPath = "m"
			r.DataCfgs.TrainDatasets = "d"
			c.mutate(r)

			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	r := defaultRecipe()
	r.ModelCfgs.ModelNameOrPath = "original"
	r.DataCfgs.TrainDatasets = "data"

	r.ApplyOverrides(Overrides{
		ModelNameOrPath: "override",
		Epochs:          7,
		LearningRate:    1e-4,
		Seed:            99,
	})

	assert.Equal(t, "override", r.ModelCfgs.ModelNameOrPath)
	assert.Equal(t, 7, r.TrainCfgs.Epochs)
	assert.Equal(t, 1e-4, r.TrainCfgs.LearningRate)
	assert.Equal(t, int64(99), r.TrainCfgs.Seed)
	// Nullwerte lassen das Rezept unveraendert
	assert.Equal(t, "data", r.DataCfgs.TrainDatasets)
	assert.Equal(t, 4, r.TrainCfgs.PerDeviceTrainBatchSize)
}

func TestWriteSummary(t *testing.T) {
	r := defaultRecipe()
	r.ModelCfgs.ModelNameOrPath = "qwen2-1.5b"
	r.DataCfgs.TrainDatasets = "data/train.jsonl"

	var sb strings.Builder
	r.WriteSummary(&sb)

	out := sb.String()
	assert.Contains(t, out, "qwen2-1.5b")
	assert.Contains(t, out, "sft")
}
