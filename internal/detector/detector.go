// Package detector wires the pipeline: fetch, normalize, classify,
// report. One Run is a single idempotent pass over the lookback window.
package detector

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/dispatch"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/logging"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/normalize"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/report"
)

// MetricSource is the metrics-query boundary consumed by the pipeline,
// substitutable in tests.
type MetricSource interface {
	DiscoverJobs(ctx context.Context) ([]string, error)
	FetchHistory(ctx context.Context, job string, start, end time.Time, step time.Duration) ([]model.RawSeries, error)
}

// Detector runs the full classification pipeline for one invocation.
type Detector struct {
	cfg        model.Config
	source     MetricSource
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
	now        func() time.Time
}

func New(cfg model.Config, source MetricSource, dispatcher *dispatch.Dispatcher, logger *logging.Logger) *Detector {
	return &Detector{
		cfg:        cfg,
		source:     source,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one pass: job discovery, per-job harvest and
// normalization (fanned out with a bounded group), sequential
// classification dispatch, then the atomic report write. Collaborator
// failures degrade per job; the run always terminates with a report
// file, possibly empty.
func (d *Detector) Run(ctx context.Context) error {
	jobs := d.targetJobs(ctx)

	end := d.now()
	start := end.Add(-time.Duration(d.cfg.Prometheus.LookbackDays) * 24 * time.Hour)
	step := time.Duration(d.cfg.Prometheus.StepSeconds) * time.Second
	window := normalize.Window{
		Start: start.Unix(),
		End:   end.Unix(),
		Step:  int64(d.cfg.Prometheus.StepSeconds),
	}

	// Harvest and normalize fan out per job; nothing downstream shares
	// mutable state across jobs.
	jobHistories := make([][]model.NormalizedHistory, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Analysis.MaxParallelJobs)
	for i, job := range jobs {
		g.Go(func() error {
			jobHistories[i] = d.harvestJob(gctx, job, start, end, step, window)
			return nil
		})
	}
	_ = g.Wait()

	// Classification batches are submitted one job at a time so the
	// courtesy delay bounds the global submission rate.
	results := make([]model.ClassificationResult, 0)
	for i := range jobs {
		results = append(results, d.dispatcher.Analyze(ctx, jobHistories[i])...)
	}

	entries := report.Assemble(d.logger, results)
	outPath := filepath.Join(d.cfg.Output.Directory, d.cfg.Output.Filename)
	if err := report.Write(outPath, entries); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	d.logger.Infof("detector", "analysis complete: processed %d jobs, %d issues found, report at %s", len(jobs), len(entries), outPath)
	return nil
}

// targetJobs resolves the job set: the configured job, or discovery when
// the config says "all". Discovery failure degrades to zero jobs.
func (d *Detector) targetJobs(ctx context.Context) []string {
	if j := d.cfg.Prometheus.JobName; j != "" && j != "all" {
		return []string{j}
	}
	jobs, err := d.source.DiscoverJobs(ctx)
	if err != nil {
		d.logger.Errorf("detector", "job discovery failed: %v", err)
		return nil
	}
	return jobs
}

// harvestJob fetches one job's raw series and normalizes them. A failed
// fetch yields no histories for the job; a series that cannot be
// normalized is dropped while the rest proceed.
func (d *Detector) harvestJob(ctx context.Context, job string, start, end time.Time, step time.Duration, window normalize.Window) []model.NormalizedHistory {
	series, err := d.source.FetchHistory(ctx, job, start, end, step)
	if err != nil {
		d.logger.Errorf("detector", "fetch failed for job %s: %v", job, err)
		return nil
	}

	histories := make([]model.NormalizedHistory, 0, len(series))
	for _, s := range series {
		h, err := normalize.Series(s, window)
		if err != nil {
			d.logger.Warnf("detector", "dropping series: %v", err)
			continue
		}
		histories = append(histories, h)
	}
	d.logger.Debugf("detector", "job %s: %d series, %d normalized", job, len(series), len(histories))
	return histories
}
