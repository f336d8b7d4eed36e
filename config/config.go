// config.go - YAML-Trainingsrezepte fuer alignforge
//
// Dieses Modul enthaelt:
// - Recipe: Gesamtstruktur eines Trainingsrezepts
// - TrainCfgs/DataCfgs/ModelCfgs/LoraCfgs/BnbCfgs/LoggerCfgs/SensorCfgs
// - Load: Laedt und validiert ein Rezept aus YAML
//
// Das Schema entspricht den Rezepten, die der externe Trainer konsumiert;
// alle Hyperparameter sind reine Daten ohne eigene Logik.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Stage bezeichnet die Trainingsmethode eines Rezepts
type Stage string

const (
	StageSFT Stage = "sft"
	StageDPO Stage = "dpo"
)

// Modality bezeichnet die Eingabe/Ausgabe-Modalitaet
type Modality string

const (
	ModalityTextToText        Modality = "text_to_text"
	ModalityTextImageToText   Modality = "text_image_to_text"
	ModalityTextVideoToAction Modality = "text_video_to_action"
)

// Recipe ist ein vollstaendiges Trainingsrezept
type Recipe struct {
	Stage    Stage    `yaml:"stage"`
	Modality Modality `yaml:"modality"`

	TrainCfgs  TrainCfgs  `yaml:"train_cfgs"`
	DataCfgs   DataCfgs   `yaml:"data_cfgs"`
	ModelCfgs  ModelCfgs  `yaml:"model_cfgs"`
	LoraCfgs   LoraCfgs   `yaml:"lora_cfgs"`
	BnbCfgs    BnbCfgs    `yaml:"bnb_cfgs"`
	LoggerCfgs LoggerCfgs `yaml:"logger_cfgs"`
	SensorCfgs SensorCfgs `yaml:"sensor_cfgs"`
}

// TrainCfgs enthaelt die Hyperparameter der Trainingsschleife
type TrainCfgs struct {
	Epochs                  int     `yaml:"epochs"`
	PerDeviceTrainBatchSize int     `yaml:"per_device_train_batch_size"`
	GradientAccumulation    int     `yaml:"gradient_accumulation_steps"`
	LearningRate            float64 `yaml:"learning_rate"`
	LRSchedulerType         string  `yaml:"lr_scheduler_type"` // constant, linear, cosine
	LRWarmupRatio           float64 `yaml:"lr_warmup_ratio"`
	WeightDecay             float64 `yaml:"weight_decay"`
	Seed                    int64   `yaml:"seed"`
	BF16                    bool    `yaml:"bf16"`
	MaxGradNorm             float64 `yaml:"max_grad_norm"`
	SaveInterval            int     `yaml:"save_interval"` // steps; 0 = nur pro Epoche
	LogEvery                int     `yaml:"log_every"`

	// DPO-spezifisch
	Beta           float64 `yaml:"beta"`
	LabelSmoothing float64 `yaml:"label_smoothing"`
}

// DataCfgs beschreibt Datensaetze und Formatierung
type DataCfgs struct {
	TrainDatasets  string  `yaml:"train_datasets"`
	TrainTemplate  string  `yaml:"train_template"`
	TrainSplit     string  `yaml:"train_split"`
	TrainSize      int     `yaml:"train_size"` // 0 = alle
	EvalDatasets   string  `yaml:"eval_datasets"`
	EvalSplit      string  `yaml:"eval_split"`
	PaddingSide    string  `yaml:"padding_side"` // left oder right
	GroupByLength  bool    `yaml:"group_by_length"`
	TrainTestSplit float64 `yaml:"train_test_split"`
}

// ModelCfgs beschreibt den Basis-Checkpoint
type ModelCfgs struct {
	ModelNameOrPath string `yaml:"model_name_or_path"`
	ModelMaxLength  int    `yaml:"model_max_length"`
	TrustRemoteCode bool   `yaml:"trust_remote_code"`
}

// LoraCfgs enthaelt die LoRA-Einstellungen
type LoraCfgs struct {
	UseLora       bool     `yaml:"use_lora"`
	R             int      `yaml:"r"`
	Alpha         int      `yaml:"lora_alpha"`
	Dropout       float64  `yaml:"lora_dropout"`
	TargetModules []string `yaml:"target_modules"`
	SaveFullModel bool     `yaml:"save_full_model"`
}

// BnbCfgs enthaelt Quantisierungs-Einstellungen (QLoRA)
type BnbCfgs struct {
	UseBnb              bool   `yaml:"use_bnb"`
	LoadIn4Bit          bool   `yaml:"load_in_4bit"`
	LoadIn8Bit          bool   `yaml:"load_in_8bit"`
	Bnb4BitComputeDtype string `yaml:"bnb_4bit_compute_dtype"`
	Bnb4BitQuantType    string `yaml:"bnb_4bit_quant_type"`
	Bnb4BitDoubleQuant  bool   `yaml:"bnb_4bit_use_double_quant"`
}

// LoggerCfgs steuert Ausgabe und Beobachtbarkeit eines Runs
type LoggerCfgs struct {
	LogType     string `yaml:"log_type"` // "slog" oder "none"
	OutputDir   string `yaml:"output_dir"`
	CacheDir    string `yaml:"cache_dir"`
	SaveTotal   int    `yaml:"save_total_limit"`
	ServeStatus bool   `yaml:"serve_status"`
}

// SensorCfgs beschreibt die Sensoren der Video/Action-Modalitaet
type SensorCfgs struct {
	Cameras        []string `yaml:"cameras"`
	FramesPerClip  int      `yaml:"frames_per_clip"`
	FrameSize      int      `yaml:"frame_size"`
	ActionSpace    []string `yaml:"action_space"`
	Proprioception bool     `yaml:"proprioception"`
}

// Load liest und validiert ein Rezept aus YAML
func Load(path string) (*Recipe, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open recipe: %w", err)
	}

	r := defaultRecipe()
	if err := yaml.Unmarshal(bts, r); err != nil {
		return nil, fmt.Errorf("parse recipe: %w", err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// defaultRecipe liefert die Default-Werte vor dem YAML-Unmarshal
func defaultRecipe() *Recipe {
	return &Recipe{
		Stage:    StageSFT,
		Modality: ModalityTextToText,
		TrainCfgs: TrainCfgs{
			Epochs:                  3,
			PerDeviceTrainBatchSize: 4,
			GradientAccumulation:    1,
			LearningRate:            2e-5,
			LRSchedulerType:         "cosine",
			LRWarmupRatio:           0.03,
			MaxGradNorm:             1.0,
			LogEvery:                10,
			Beta:                    0.1,
		},
		DataCfgs: DataCfgs{
			TrainSplit:  "train",
			PaddingSide: "right",
		},
		ModelCfgs: ModelCfgs{
			ModelMaxLength: 2048,
		},
		LoraCfgs: LoraCfgs{
			R:       16,
			Alpha:   32,
			Dropout: 0.05,
		},
		LoggerCfgs: LoggerCfgs{
			LogType: "slog",
		},
		SensorCfgs: SensorCfgs{
			FramesPerClip: 8,
			FrameSize:     224,
		},
	}
}

// Validate prueft, ob das Rezept lauffaehig ist
func (r *Recipe) Validate() error {
	if r == nil {
		return errors.New("recipe is nil")
	}

	switch r.Stage {
	case StageSFT, StageDPO:
	default:
		return fmt.Errorf("unknown stage %q", r.Stage)
	}

	switch r.Modality {
	case ModalityTextToText, ModalityTextImageToText, ModalityTextVideoToAction:
	default:
		return fmt.Errorf("unknown modality %q", r.Modality)
	}

	if r.ModelCfgs.ModelNameOrPath == "" {
		return errors.New("model_cfgs.model_name_or_path must be set")
	}
	if r.DataCfgs.TrainDatasets == "" {
		return errors.New("data_cfgs.train_datasets must be set")
	}
	if r.TrainCfgs.Epochs <= 0 {
		return fmt.Errorf("train_cfgs.epochs must be > 0 (got %d)", r.TrainCfgs.Epochs)
	}
	if r.TrainCfgs.PerDeviceTrainBatchSize <= 0 {
		return fmt.Errorf("train_cfgs.per_device_train_batch_size must be > 0 (got %d)", r.TrainCfgs.PerDeviceTrainBatchSize)
	}
	if r.TrainCfgs.GradientAccumulation <= 0 {
		return fmt.Errorf("train_cfgs.gradient_accumulation_steps must be > 0 (got %d)", r.TrainCfgs.GradientAccumulation)
	}
	if r.TrainCfgs.LearningRate <= 0 {
		return fmt.Errorf("train_cfgs.learning_rate must be > 0 (got %g)", r.TrainCfgs.LearningRate)
	}

	switch r.TrainCfgs.LRSchedulerType {
	case "constant", "linear", "cosine":
	default:
		return fmt.Errorf("unknown lr_scheduler_type %q", r.TrainCfgs.LRSchedulerType)
	}

	switch r.DataCfgs.PaddingSide {
	case "left", "right":
	default:
		return fmt.Errorf("padding_side must be \"left\" or \"right\" (got %q)", r.DataCfgs.PaddingSide)
	}

	if r.Stage == StageDPO && r.TrainCfgs.Beta <= 0 {
		return fmt.Errorf("train_cfgs.beta must be > 0 for dpo (got %g)", r.TrainCfgs.Beta)
	}

	if r.BnbCfgs.LoadIn4Bit && r.BnbCfgs.LoadIn8Bit {
		return errors.New("bnb_cfgs: load_in_4bit and load_in_8bit are mutually exclusive")
	}

	if r.Modality == ModalityTextVideoToAction {
		if r.SensorCfgs.FramesPerClip <= 0 {
			return fmt.Errorf("sensor_cfgs.frames_per_clip must be > 0 (got %d)", r.SensorCfgs.FramesPerClip)
		}
		if len(r.SensorCfgs.Cameras) == 0 {
			return errors.New("sensor_cfgs.cameras must name at least one camera")
		}
	}

	return nil
}
