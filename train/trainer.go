// trainer.go - Trainingsschleife fuer SFT und DPO
//
// MODUL: trainer
// ZWECK: Fuehrt einen kompletten Trainingslauf ueber ein Rezept aus
// INPUT: Rezept, Daten-Loader, Runtime(s), optionaler Run-Store
// OUTPUT: RunInfo mit Endstatus; Adapter-Checkpoints im Output-Verzeichnis
package train

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/alignforge/alignforge/api"
	"github.com/alignforge/alignforge/checkpoint"
	"github.com/alignforge/alignforge/config"
	"github.com/alignforge/alignforge/dataset"
	"github.com/alignforge/alignforge/envconfig"
)

// Options konfiguriert einen Trainingslauf
type Options struct {
	Recipe *config.Recipe
	Loader *dataset.Loader

	// Policy ist das trainierte Backend
	Policy Runtime

	// Reference ist die eingefrorene Referenz-Policy; Pflicht fuer DPO
	Reference Runtime

	// Store ist optional; ohne Store werden keine Metriken persistiert
	Store *Store

	// OutputDir ueberschreibt logger_cfgs.output_dir
	OutputDir string

	// RecipePath wird nur fuer die Run-Metadaten gespeichert
	RecipePath string

	// Architecture ist die Basis-Architektur aus config.json des
	// Checkpoints; Fallback ist model_name_or_path
	Architecture string
}

// Trainer fuehrt die Trainingsschleife aus
type Trainer struct {
	recipe    *config.Recipe
	loader    *dataset.Loader
	policy    Runtime
	reference Runtime
	store     *Store
	outputDir string
	arch      string
	run       api.RunInfo
	sched     *Scheduler
}

// New validiert die Optionen und erstellt einen Trainer
func New(opts Options) (*Trainer, error) {
	if opts.Recipe == nil {
		return nil, fmt.Errorf("train: recipe is required")
	}
	if opts.Loader == nil {
		return nil, fmt.Errorf("train: loader is required")
	}
	if opts.Policy == nil {
		return nil, fmt.Errorf("train: policy runtime is required")
	}
	if opts.Recipe.Stage == config.StageDPO && opts.Reference == nil {
		return nil, fmt.Errorf("train: dpo requires a reference runtime")
	}

	cfg := opts.Recipe.TrainCfgs
	batchesPerEpoch := opts.Loader.BatchesPerEpoch()
	if batchesPerEpoch == 0 {
		return nil, fmt.Errorf("train: dataset yields no batches")
	}

	stepsPerEpoch := (batchesPerEpoch + cfg.GradientAccumulation - 1) / cfg.GradientAccumulation
	totalSteps := stepsPerEpoch * cfg.Epochs

	sched, err := NewScheduler(cfg.LRSchedulerType, cfg.LearningRate, cfg.LRWarmupRatio, totalSteps)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = opts.Recipe.LoggerCfgs.OutputDir
	}
	if outputDir == "" {
		outputDir = filepath.Join(envconfig.Runs(), runID)
	}

	arch := opts.Architecture
	if arch == "" {
		arch = opts.Recipe.ModelCfgs.ModelNameOrPath
	}

	return &Trainer{
		recipe:    opts.Recipe,
		arch:      arch,
		loader:    opts.Loader,
		policy:    opts.Policy,
		reference: opts.Reference,
		store:     opts.Store,
		outputDir: outputDir,
		sched:     sched,
		run: api.RunInfo{
			ID:        runID,
			Stage:     string(opts.Recipe.Stage),
			Model:     opts.Recipe.ModelCfgs.ModelNameOrPath,
			Recipe:    opts.RecipePath,
			Status:    "running",
			StartedAt: time.Now().UTC(),
		},
	}, nil
}

// RunInfo gibt die Metadaten des Laufs zurueck
func (t *Trainer) RunInfo() api.RunInfo {
	return t.run
}

// OutputDir gibt das Verzeichnis zurueck, in das Adapter geschrieben werden
func (t *Trainer) OutputDir() string {
	return t.outputDir
}

// Run fuehrt den kompletten Trainingslauf aus
func (t *Trainer) Run(ctx context.Context) (api.RunInfo, error) {
	if t.store != nil {
		if err := t.store.CreateRun(t.run); err != nil {
			return t.run, err
		}
	}

	err := t.loop(ctx)

	t.run.Status = "completed"
	if err != nil {
		t.run.Status = "failed"
	}
	t.run.FinishedAt = time.Now().UTC()

	if t.store != nil {
		if serr := t.store.FinishRun(t.run.ID, t.run.Status); serr != nil && err == nil {
			err = serr
		}
	}

	return t.run, err
}

func (t *Trainer) loop(ctx context.Context) error {
	cfg := t.recipe.TrainCfgs
	accum := cfg.GradientAccumulation
	logEvery := cfg.LogEvery
	if logEvery <= 0 {
		logEvery = 10
	}

	slog.Info("starting training run",
		"run", t.run.ID,
		"stage", t.run.Stage,
		"model", t.run.Model,
		"epochs", cfg.Epochs,
		"batches_per_epoch", t.loader.BatchesPerEpoch(),
		"warmup_steps", t.sched.WarmupSteps())

	var window Window
	var step int  // Optimizer-Steps (1-basiert)
	var micro int // Microbatches seit dem letzten Optimizer-Step

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		batches, wait := t.loader.Epoch(ctx, epoch)

		startData := time.Now()
		for batch := range batches {
			dataTime := time.Since(startData)

			if micro == 0 {
				step++
			}
			micro = (micro + 1) % accum

			// Updates laufen pro Microbatch mit lr/accum; das entspricht
			// dem akkumulierten Schritt bei identischen Gradienten
			lr := t.sched.LR(step) / float64(accum)

			startCompute := time.Now()
			loss, err := t.trainStep(ctx, batch, lr, &window)
			if err != nil {
				return err
			}
			computeTime := time.Since(startCompute)

			window.Record(batch.Size(), dataTime, computeTime, loss)

			if micro == 0 && step%logEvery == 0 {
				t.log(epoch, step, &window)
			}

			if micro == 0 && cfg.SaveInterval > 0 && step%cfg.SaveInterval == 0 {
				if err := t.save(fmt.Sprintf("checkpoint-%d", step)); err != nil {
					return err
				}
			}

			startData = time.Now()
		}

		if err := wait(); err != nil {
			return err
		}

		// Eine am Epochenende offene Accumulation-Gruppe wird geschlossen,
		// sonst teilen sich die letzte Microbatch der Epoche und die erste
		// der naechsten einen Optimizer-Step und der Scheduler erreicht
		// sein Ende nie
		if micro != 0 {
			micro = 0
			t.log(epoch, step, &window)
		}

		if err := t.save(fmt.Sprintf("epoch-%d", epoch+1)); err != nil {
			return err
		}
		slog.Info("epoch finished", "run", t.run.ID, "epoch", epoch+1, "step", step)
	}

	// Finaler Adapter ins Wurzelverzeichnis des Runs
	return t.save("")
}

// trainStep verarbeitet einen Microbatch und gibt den Loss zurueck
func (t *Trainer) trainStep(ctx context.Context, batch *dataset.Batch, lr float64, window *Window) (float64, error) {
	if t.recipe.Stage == config.StageSFT {
		return t.policy.Step(ctx, batch, lr)
	}

	if !batch.Meta.Preference {
		return 0, fmt.Errorf("train: dpo requires preference batches")
	}

	policyLP, err := t.policy.LogProbs(ctx, batch)
	if err != nil {
		return 0, err
	}
	refLP, err := t.reference.LogProbs(ctx, batch)
	if err != nil {
		return 0, err
	}

	res, err := DPOLoss(policyLP, refLP, t.recipe.TrainCfgs.Beta, t.recipe.TrainCfgs.LabelSmoothing)
	if err != nil {
		return 0, err
	}

	if err := t.policy.PreferenceStep(ctx, batch, res.Coeffs, lr); err != nil {
		return 0, err
	}

	window.RecordRewards(res.RewardMargin, res.RewardAccuracy)
	return res.Loss, nil
}

// log schreibt Snapshot-Metriken nach slog und in den Store
func (t *Trainer) log(epoch, step int, window *Window) {
	snap := window.Snapshot()
	lr := t.sched.LR(step)

	attrs := []any{
		"run", t.run.ID,
		"step", step,
		"loss", fmt.Sprintf("%.4f", snap.Loss),
		"lr", fmt.Sprintf("%.3g", lr),
		"samples_per_sec", fmt.Sprintf("%.1f", snap.SamplesPerSec),
		"data_ms", fmt.Sprintf("%.2f", snap.AvgDataMS),
		"compute_ms", fmt.Sprintf("%.2f", snap.AvgComputeMS),
	}
	if t.recipe.Stage == config.StageDPO {
		attrs = append(attrs,
			"reward_margin", fmt.Sprintf("%.4f", snap.RewardMargin),
			"reward_accuracy", fmt.Sprintf("%.3f", snap.RewardAccuracy))
	}
	slog.Info("train", attrs...)

	if t.store == nil {
		return
	}
	err := t.store.RecordStep(t.run.ID, api.StepMetrics{
		Step:           step,
		Epoch:          epoch,
		Loss:           snap.Loss,
		LearningRate:   lr,
		SamplesPerSec:  snap.SamplesPerSec,
		DataMS:         snap.AvgDataMS,
		ComputeMS:      snap.AvgComputeMS,
		RewardMargin:   snap.RewardMargin,
		RewardAccuracy: snap.RewardAccuracy,
	})
	if err != nil {
		slog.Warn("could not persist step metrics", "error", err)
	}
}

// save exportiert den aktuellen Adapter-Stand
func (t *Trainer) save(sub string) error {
	dir := t.outputDir
	if sub != "" {
		dir = filepath.Join(t.outputDir, sub)
	}

	lora := t.recipe.LoraCfgs
	params := checkpoint.AdapterParams{
		Architecture:  t.arch,
		Rank:          uint32(lora.R),
		LoraAlpha:     uint32(lora.Alpha),
		LoraDropout:   float32(lora.Dropout),
		TargetModules: lora.TargetModules,
	}

	if err := checkpoint.SaveAdapter(dir, params, t.policy.Snapshot()); err != nil {
		return fmt.Errorf("save adapter: %w", err)
	}
	slog.Debug("saved adapter", "run", t.run.ID, "dir", dir)
	return nil
}
