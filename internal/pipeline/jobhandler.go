package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txnflow/internal/gcsarchive"
	"github.com/dvloznov/txnflow/internal/jobs"
)

// NewIngestJobHandler returns the handler the worker runs for queued
// ingestion jobs: fetch the archived upload, run the pipeline, record the
// merge counts on the job.
func NewIngestJobHandler(in *Ingestor, store jobs.JobStore, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestFileJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Str("profileID", ingestJob.ProfileID).
			Str("gcs_uri", ingestJob.GCSURI).
			Msg("Processing ingestion job")

		data, err := gcsarchive.Fetch(ctx, ingestJob.GCSURI)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ingestJob.GCSURI, err)
		}

		fileName := ingestJob.FileName
		if fileName == "" {
			fileName = gcsarchive.FilenameFromURI(ingestJob.GCSURI)
		}

		res, err := in.IngestFile(ctx, ingestJob.ProfileID, fileName, data)
		if err != nil {
			return err
		}

		ingestJob.Stored = res.Stored
		ingestJob.Duplicates = res.Duplicates
		if store != nil {
			if err := store.SaveJob(ctx, ingestJob); err != nil {
				log.Warn().Err(err).Str("job_id", ingestJob.JobID).Msg("Failed to record job counts")
			}
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Int("stored", res.Stored).
			Int("duplicates", res.Duplicates).
			Msg("Ingestion job completed")
		return nil
	}
}
