package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datallboy/bossfetch/internal/domain"
)

type report struct {
	Job     string           `yaml:"job"`
	Status  domain.JobStatus `yaml:"status"`
	Error   string           `yaml:"error,omitempty"`
	Items   []string         `yaml:"items"`
	Summary domain.Summary   `yaml:"summary"`
}

// writeReport saves the outcome of job as YAML.
func writeReport(path string, job *domain.Job) error {
	r := report{
		Job:     job.ID,
		Status:  job.Status,
		Error:   job.Error,
		Items:   make([]string, len(job.Items)),
		Summary: job.Summary,
	}
	for i, item := range job.Items {
		r.Items[i] = item.String()
	}

	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
