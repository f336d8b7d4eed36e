// cmd_train.go - sft/dpo Commands und Pipeline-Aufbau
//
// Baut aus einem Rezept die komplette Pipeline auf: Tokenizer, Bild-
// Prozessor, Template, Dataset, Loader, Runtime, Run-Store - und startet
// die Trainingsschleife. Optional laeuft waehrend des Trainings die
// Status-API.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alignforge/alignforge/checkpoint"
	"github.com/alignforge/alignforge/config"
	"github.com/alignforge/alignforge/dataset"
	"github.com/alignforge/alignforge/envconfig"
	"github.com/alignforge/alignforge/logutil"
	"github.com/alignforge/alignforge/server"
	"github.com/alignforge/alignforge/template"
	"github.com/alignforge/alignforge/tokenizer"
	"github.com/alignforge/alignforge/train"
	"github.com/alignforge/alignforge/vision"
)

func newSFTCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sft RECIPE",
		Short: "Run supervised fine-tuning",
		Args:  cobra.ExactArgs(1),
		RunE:  trainHandler(config.StageSFT),
	}
	addTrainFlags(cmd)
	return cmd
}

func newDPOCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dpo RECIPE",
		Short: "Run direct preference optimization",
		Args:  cobra.ExactArgs(1),
		RunE:  trainHandler(config.StageDPO),
	}
	addTrainFlags(cmd)
	return cmd
}

// addTrainFlags registriert die Rezept-Overrides
func addTrainFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "Override model_cfgs.model_name_or_path")
	cmd.Flags().String("datasets", "", "Override data_cfgs.train_datasets")
	cmd.Flags().String("output", "", "Override logger_cfgs.output_dir")
	cmd.Flags().Int("epochs", 0, "Override train_cfgs.epochs")
	cmd.Flags().Int("batch-size", 0, "Override train_cfgs.per_device_train_batch_size")
	cmd.Flags().Float64("lr", 0, "Override train_cfgs.learning_rate")
	cmd.Flags().Int64("seed", 0, "Override train_cfgs.seed")
	cmd.Flags().Int("log-every", 0, "Override train_cfgs.log_every")
}

// trainHandler gibt den RunE-Handler fuer eine Stage zurueck
func trainHandler(stage config.Stage) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		recipe, err := loadRecipe(cmd, args[0], stage)
		if err != nil {
			return err
		}

		if term.IsTerminal(int(os.Stdout.Fd())) {
			recipe.WriteSummary(os.Stdout)
		}

		return runTraining(cmd.Context(), recipe, args[0])
	}
}

// loadRecipe laedt das Rezept und wendet die CLI-Overrides an
func loadRecipe(cmd *cobra.Command, path string, stage config.Stage) (*config.Recipe, error) {
	recipe, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if recipe.Stage != stage {
		return nil, fmt.Errorf("recipe declares stage %q, but the %s command was invoked", recipe.Stage, stage)
	}

	var o config.Overrides
	o.ModelNameOrPath, _ = cmd.Flags().GetString("model")
	o.TrainDatasets, _ = cmd.Flags().GetString("datasets")
	o.OutputDir, _ = cmd.Flags().GetString("output")
	o.Epochs, _ = cmd.Flags().GetInt("epochs")
	o.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	o.LearningRate, _ = cmd.Flags().GetFloat64("lr")
	o.Seed, _ = cmd.Flags().GetInt64("seed")
	o.LogEvery, _ = cmd.Flags().GetInt("log-every")
	recipe.ApplyOverrides(o)

	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return recipe, nil
}

// resolveTemplate bestimmt das Chat-Template eines Laufs: explizit per
// data_cfgs.train_template, sonst per Fuzzy-Match auf das chat_template
// des Checkpoints
func resolveTemplate(recipe *config.Recipe, tok *tokenizer.Tokenizer) (*template.Template, error) {
	if name := recipe.DataCfgs.TrainTemplate; name != "" {
		return template.ByName(name)
	}

	if tok.ChatTemplate != "" {
		if n, err := template.Named(tok.ChatTemplate); err == nil {
			slog.Info("detected chat template", "name", n.Name)
			return template.Parse(string(n.Bytes))
		}
		slog.Warn("checkpoint chat template matches no builtin template, using plain prompts")
	}

	return template.DefaultTemplate, nil
}

// resolveModelDir loest model_name_or_path auf: existiert der Pfad nicht,
// wird er unterhalb des Checkpoint-Caches gesucht (logger_cfgs.cache_dir,
// sonst ALIGNFORGE_CACHE)
func resolveModelDir(recipe *config.Recipe) string {
	name := recipe.ModelCfgs.ModelNameOrPath
	if _, err := os.Stat(name); err == nil {
		return name
	}

	cache := recipe.LoggerCfgs.CacheDir
	if cache == "" {
		cache = envconfig.Cache()
	}
	if cached := filepath.Join(cache, name); dirExists(cached) {
		slog.Info("using cached checkpoint", "dir", cached)
		return cached
	}

	return name
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// runTraining baut die Pipeline auf und fuehrt den Lauf aus
func runTraining(ctx context.Context, recipe *config.Recipe, recipePath string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("trainer config", "env", envconfig.Values())

	modelDir := resolveModelDir(recipe)

	tok, err := tokenizer.Load(modelDir)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	if recipe.DataCfgs.PaddingSide != "" {
		tok.PaddingSide = recipe.DataCfgs.PaddingSide
	}

	model, err := checkpoint.Load(modelDir)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	var proc *vision.Processor
	if recipe.Modality != config.ModalityTextToText {
		proc, err = vision.NewProcessor(modelDir)
		if err != nil {
			return fmt.Errorf("load image processor: %w", err)
		}
	}

	tmpl, err := resolveTemplate(recipe, tok)
	if err != nil {
		return fmt.Errorf("resolve template: %w", err)
	}

	src, err := dataset.Open(recipe.DataCfgs.TrainDatasets, recipe.DataCfgs.TrainSplit, recipe.DataCfgs.TrainSize)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}

	maxLength := recipe.ModelCfgs.ModelMaxLength
	if tok.ModelMaxLength > 0 && tok.ModelMaxLength < maxLength {
		maxLength = tok.ModelMaxLength
	}

	opts := dataset.SFTOptions{
		Template:    tmpl,
		Tokenizer:   tok,
		Processor:   proc,
		MaxLength:   maxLength,
		PaddingSide: recipe.DataCfgs.PaddingSide,
	}
	if recipe.Modality == config.ModalityTextVideoToAction {
		opts.FramesPerClip = recipe.SensorCfgs.FramesPerClip
	}

	var ds dataset.Batcher
	if recipe.Stage == config.StageDPO {
		ds, err = dataset.NewPreference(src, opts)
	} else {
		ds, err = dataset.NewSFT(src, opts)
	}
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}

	loader, err := dataset.NewLoader(ds, dataset.LoaderOptions{
		BatchSize:     recipe.TrainCfgs.PerDeviceTrainBatchSize,
		Seed:          recipe.TrainCfgs.Seed,
		NumWorkers:    int(envconfig.NumWorkers()),
		GroupByLength: recipe.DataCfgs.GroupByLength,
	})
	if err != nil {
		return fmt.Errorf("build loader: %w", err)
	}

	vocab := tok.VocabSize()
	if n := int(model.Params.VocabSize); n > vocab {
		vocab = n
	}

	policy := train.NewBigramRuntime(vocab, recipe.TrainCfgs.Seed)

	var reference train.Runtime
	if recipe.Stage == config.StageDPO {
		reference = policy.Clone()
	}

	if err := os.MkdirAll(envconfig.Runs(), 0o755); err != nil {
		return err
	}
	store, err := train.NewStore(filepath.Join(envconfig.Runs(), "runs.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	trainer, err := train.New(train.Options{
		Recipe:       recipe,
		Loader:       loader,
		Policy:       policy,
		Reference:    reference,
		Store:        store,
		RecipePath:   recipePath,
		Architecture: model.Params.Architecture(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Ctrl+C bricht den Lauf sauber ab
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	if recipe.LoggerCfgs.ServeStatus && !envconfig.NoStatus() {
		gin.SetMode(gin.ReleaseMode)

		ln, err := net.Listen("tcp", envconfig.Host().Host)
		if err != nil {
			return fmt.Errorf("status api: %w", err)
		}

		srv := server.NewServer(store, recipe)
		srv.SetRun(trainer.RunInfo())
		go func() {
			if err := srv.Serve(ctx, ln); err != nil {
				slog.Error("status api stopped", "error", err)
			}
		}()
	}

	run, err := trainer.Run(ctx)
	if err != nil {
		if !envconfig.KeepFailed() {
			slog.Info("removing artifacts of failed run", "run", run.ID, "dir", trainer.OutputDir())
			// ALIGNFORGE_KEEP_FAILED=1 behaelt den Output zur Fehlersuche
			os.RemoveAll(trainer.OutputDir())
		}
		return err
	}

	slog.Info("run finished", "run", run.ID, "status", run.Status, "duration", run.FinishedAt.Sub(run.StartedAt))
	return nil
}
