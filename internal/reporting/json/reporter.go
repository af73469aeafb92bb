package json

import (
	"context"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
)

const ReporterTypeJSON = "json"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct{}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	return NewReporterWithWriter(cfg, os.Stdout, logger), nil
}

func NewReporterWithWriter(cfg Config, w io.Writer, logger ports.Logger) *Reporter {
	return &Reporter{
		config: cfg,
		writer: w,
		logger: logger,
	}
}

type jsonReport struct {
	PassID     string           `json:"pass_id,omitempty"`
	APIVersion string           `json:"api_version,omitempty"`
	DryRun     bool             `json:"dry_run"`
	Summary    jsonSummary      `json:"summary"`
	Results    []jsonResultItem `json:"results"`
}

type jsonSummary struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
	Planned int `json:"planned"`
	Noop    int `json:"noop"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

type jsonResultItem struct {
	Name         string              `json:"name"`
	Status       domain.ActionStatus `json:"status"`
	Desired      domain.EnsureState  `json:"desired"`
	Observed     domain.EnsureState  `json:"observed,omitempty"`
	Final        domain.EnsureState  `json:"final,omitempty"`
	Actions      []domain.Action     `json:"actions,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

type jsonMachine struct {
	Name     string             `json:"name"`
	State    domain.EnsureState `json:"state"`
	Location string             `json:"location,omitempty"`
	Size     string             `json:"size,omitempty"`
	Image    string             `json:"image,omitempty"`
	Username string             `json:"username,omitempty"`
	Hostname string             `json:"hostname,omitempty"`
	ID       string             `json:"id,omitempty"`
}

func (r *Reporter) Report(ctx context.Context, result domain.PassResult) error {
	report := jsonReport{
		PassID:     result.PassID,
		APIVersion: result.APIVersion,
		DryRun:     result.DryRun,
		Summary:    jsonSummary{Total: len(result.Results)},
		Results:    make([]jsonResultItem, 0, len(result.Results)),
	}

	for _, res := range result.Results {
		if ctx.Err() != nil {
			r.logger.Warnf(ctx, "JSON report generation cancelled.")
			return ctx.Err()
		}

		switch res.Status {
		case domain.StatusApplied:
			report.Summary.Applied++
		case domain.StatusPlanned:
			report.Summary.Planned++
		case domain.StatusNoop:
			report.Summary.Noop++
		case domain.StatusSkipped:
			report.Summary.Skipped++
		case domain.StatusError:
			report.Summary.Errors++
		}

		item := jsonResultItem{
			Name:     res.Name,
			Status:   res.Status,
			Desired:  res.Desired,
			Observed: res.Observed,
			Final:    res.Final,
			Actions:  res.Actions,
		}
		if res.Error != nil {
			item.ErrorMessage = res.Error.Error()
		}
		report.Results = append(report.Results, item)
	}

	return r.encode(ctx, report)
}

func (r *Reporter) ReportInventory(ctx context.Context, machines []domain.MachineDescriptor) error {
	out := make([]jsonMachine, 0, len(machines))
	for _, m := range machines {
		item := jsonMachine{
			Name:     m.Name,
			State:    m.Ensure,
			Location: m.Location,
			Size:     m.Size,
			Image:    m.Image,
			Username: m.Username,
			Hostname: m.Hostname,
		}
		if m.Handle != nil {
			item.ID = m.Handle.ID
		}
		out = append(out, item)
	}
	return r.encode(ctx, map[string]any{"machines": out})
}

func (r *Reporter) encode(ctx context.Context, v any) error {
	encoder := jsonAPI.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(v); err != nil {
		r.logger.Errorf(ctx, err, "Failed to encode JSON report")
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}

	r.logger.Debugf(ctx, "JSON report successfully generated.")
	return nil
}
