// summary.go - Hyperparameter-Zusammenfassung als Tabelle
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders the effective hyperparameters as a table.
func (r *Recipe) WriteSummary(w io.Writer) {
	data := [][]string{
		{"stage", string(r.Stage)},
		{"modality", string(r.Modality)},
		{"model", r.ModelCfgs.ModelNameOrPath},
		{"datasets", r.DataCfgs.TrainDatasets},
		{"template", r.DataCfgs.TrainTemplate},
		{"epochs", fmt.Sprintf("%d", r.TrainCfgs.Epochs)},
		{"batch size", fmt.Sprintf("%d", r.TrainCfgs.PerDeviceTrainBatchSize)},
		{"grad accumulation", fmt.Sprintf("%d", r.TrainCfgs.GradientAccumulation)},
		{"learning rate", fmt.Sprintf("%g", r.TrainCfgs.LearningRate)},
		{"lr scheduler", r.TrainCfgs.LRSchedulerType},
		{"warmup ratio", fmt.Sprintf("%g", r.TrainCfgs.LRWarmupRatio)},
		{"weight decay", fmt.Sprintf("%g", r.TrainCfgs.WeightDecay)},
		{"max length", fmt.Sprintf("%d", r.ModelCfgs.ModelMaxLength)},
		{"padding side", r.DataCfgs.PaddingSide},
	}

	if r.Stage == StageDPO {
		data = append(data,
			[]string{"beta", fmt.Sprintf("%g", r.TrainCfgs.Beta)},
			[]string{"label smoothing", fmt.Sprintf("%g", r.TrainCfgs.LabelSmoothing)},
		)
	}

	if r.LoraCfgs.UseLora {
		data = append(data,
			[]string{"lora r", fmt.Sprintf("%d", r.LoraCfgs.R)},
			[]string{"lora alpha", fmt.Sprintf("%d", r.LoraCfgs.Alpha)},
			[]string{"lora dropout", fmt.Sprintf("%g", r.LoraCfgs.Dropout)},
			[]string{"target modules", strings.Join(r.LoraCfgs.TargetModules, ",")},
		)
	}

	if r.BnbCfgs.UseBnb {
		quant := "8bit"
		if r.BnbCfgs.LoadIn4Bit {
			quant = fmt.Sprintf("4bit (%s, %s)", r.BnbCfgs.Bnb4BitQuantType, r.BnbCfgs.Bnb4BitComputeDtype)
		}
		data = append(data, []string{"quantization", quant})
	}

	if r.Modality == ModalityTextVideoToAction {
		data = append(data,
			[]string{"cameras", strings.Join(r.SensorCfgs.Cameras, ",")},
			[]string{"frames per clip", fmt.Sprintf("%d", r.SensorCfgs.FramesPerClip)},
		)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"PARAMETER", "VALUE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
