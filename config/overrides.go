// overrides.go - CLI-Overrides fuer Rezepte
package config

// Overrides captures CLI supplied values. Zero values leave the recipe
// untouched.
type Overrides struct {
	ModelNameOrPath string
	TrainDatasets   string
	OutputDir       string
	Epochs          int
	BatchSize       int
	LearningRate    float64
	Seed            int64
	LogEvery        int
}

// ApplyOverrides updates the recipe using any non-zero override.
func (r *Recipe) ApplyOverrides(o Overrides) {
	if o.ModelNameOrPath != "" {
		r.ModelCfgs.ModelNameOrPath = o.ModelNameOrPath
	}
	if o.TrainDatasets != "" {
		r.DataCfgs.TrainDatasets = o.TrainDatasets
	}
	if o.OutputDir != "" {
		r.LoggerCfgs.OutputDir = o.OutputDir
	}
	if o.Epochs > 0 {
		r.TrainCfgs.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		r.TrainCfgs.PerDeviceTrainBatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		r.TrainCfgs.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		r.TrainCfgs.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		r.TrainCfgs.LogEvery = o.LogEvery
	}
}
