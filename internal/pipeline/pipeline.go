// Package pipeline orchestrates file ingestion: decode and parse the export,
// classify the drafts, merge against the stored set, persist the outcome. The
// same deps also drive reclassification and analysis.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/txnflow/internal/classify"
	"github.com/dvloznov/txnflow/internal/dedup"
	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/parser"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	ProfileID string

	// Files are the raw uploads for this run, one or many.
	Files []File

	// Batch accumulates parsed drafts across all files, ordered by
	// datetime before merging.
	Batch []model.Transaction

	// SkippedRows counts unusable rows across all parsed files.
	SkippedRows int

	// SkippedFiles lists uploads that could not be parsed; one bad file
	// never sinks the batch.
	SkippedFiles []SkippedFile

	// Mappings are the classification mapping snapshots for this run.
	Mappings classify.Mappings

	// Existing is the profile's stored transaction set at merge time.
	Existing []model.Transaction

	// Merge is the dedup outcome, set by the merge step.
	Merge dedup.Result
}

// File is one upload.
type File struct {
	Name string
	Data []byte
}

// SkippedFile records why an upload was left out of the batch.
type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// validateFiles rejects a batch up front when an upload carries an unusable
// extension or the combined payload is too large.
func validateFiles(files []File) error {
	if len(files) == 0 {
		return fmt.Errorf("validateFiles: no files in batch")
	}
	var invalid []string
	total := 0
	for _, f := range files {
		if !parser.AllowedFile(f.Name) {
			invalid = append(invalid, f.Name)
		}
		total += len(f.Data)
	}
	if len(invalid) > 0 {
		return fmt.Errorf("validateFiles: unsupported file types: %v", invalid)
	}
	if total > parser.MaxFileSize {
		return fmt.Errorf("validateFiles: combined upload exceeds the %dMB limit", parser.MaxFileSize>>20)
	}
	return nil
}
