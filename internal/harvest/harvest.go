// Package harvest is the metrics-query boundary: job discovery and
// range queries against the Prometheus HTTP API.
package harvest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/logging"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
)

const (
	// failureAgeMetric carries, per build, how many consecutive builds a
	// test case has been failing.
	failureAgeMetric = "jenkins_build_test_case_failure_age"

	// discoveryRange bounds how far back job discovery looks for active series.
	discoveryRange = "30d"

	queryTimeout = 60 * time.Second
)

// Harvester issues queries against one Prometheus backend.
type Harvester struct {
	api    v1.API
	logger *logging.Logger
}

func New(promURL string, logger *logging.Logger) (*Harvester, error) {
	client, err := api.NewClient(api.Config{Address: promURL})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	return &Harvester{api: v1.NewAPI(client), logger: logger}, nil
}

// DiscoverJobs returns all job names that carry failure-age series.
func (h *Harvester) DiscoverJobs(ctx context.Context) ([]string, error) {
	h.logger.Infof("harvest", "discovering jobs from Prometheus")

	query := fmt.Sprintf("count by (jobname) (max_over_time(%s[%s]))", failureAgeMetric, discoveryRange)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	val, warnings, err := h.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("job discovery query: %w", err)
	}
	for _, w := range warnings {
		h.logger.Warnf("harvest", "discovery warning: %s", w)
	}

	vector, ok := val.(prommodel.Vector)
	if !ok {
		return nil, fmt.Errorf("job discovery: unexpected result type %s", val.Type())
	}

	var jobs []string
	for _, sample := range vector {
		if name, ok := sample.Metric["jobname"]; ok {
			jobs = append(jobs, string(name))
		}
	}
	sort.Strings(jobs)

	h.logger.Infof("harvest", "found %d jobs: %v", len(jobs), jobs)
	return jobs, nil
}

// FetchHistory range-queries one job's failure-age series over
// [start, end] at the given step. A failed or empty query yields zero
// series, never an error the run cannot absorb.
func (h *Harvester) FetchHistory(ctx context.Context, job string, start, end time.Time, step time.Duration) ([]model.RawSeries, error) {
	h.logger.Infof("harvest", "fetching metrics for job %s", job)

	query := fmt.Sprintf(`%s{jobname=%q, status=~"FAILED|REGRESSION"}`, failureAgeMetric, job)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	val, warnings, err := h.api.QueryRange(ctx, query, v1.Range{Start: start, End: end, Step: step})
	if err != nil {
		return nil, fmt.Errorf("range query for %s: %w", job, err)
	}
	for _, w := range warnings {
		h.logger.Warnf("harvest", "range query warning for %s: %s", job, w)
	}

	matrix, ok := val.(prommodel.Matrix)
	if !ok {
		return nil, fmt.Errorf("range query for %s: unexpected result type %s", job, val.Type())
	}

	return SeriesFromMatrix(job, matrix), nil
}

// SeriesFromMatrix converts a range-query matrix into raw series tagged
// with the job. The suite and case labels default to "unknown" when absent.
func SeriesFromMatrix(job string, matrix prommodel.Matrix) []model.RawSeries {
	series := make([]model.RawSeries, 0, len(matrix))
	for _, stream := range matrix {
		identity := model.TestIdentity{
			Job:   job,
			Suite: labelOrUnknown(stream.Metric, "suite"),
			Case:  labelOrUnknown(stream.Metric, "case"),
		}
		samples := make([]model.RawSample, 0, len(stream.Values))
		for _, pair := range stream.Values {
			samples = append(samples, model.RawSample{
				TimestampSeconds: pair.Timestamp.Unix(),
				Value:            float64(pair.Value),
			})
		}
		series = append(series, model.RawSeries{Identity: identity, Samples: samples})
	}
	return series
}

func labelOrUnknown(m prommodel.Metric, name prommodel.LabelName) string {
	if v, ok := m[name]; ok {
		return string(v)
	}
	return "unknown"
}
