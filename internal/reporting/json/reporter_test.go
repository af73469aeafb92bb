package json

import (
	"bytes"
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	apperrors "github.com/olusolaa/vm-reconciler/internal/errors"
	"github.com/olusolaa/vm-reconciler/internal/log"
)

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporterWithWriter(Config{}, &buf, log.NewDiscard())

	result := domain.PassResult{
		PassID:     "pass-1",
		APIVersion: "aws_ec2",
		Results: []domain.ActionResult{
			{Name: "web-1", Desired: domain.EnsureRunning, Observed: domain.EnsureAbsent, Final: domain.EnsureRunning,
				Actions: []domain.Action{domain.ActionCreate}, Status: domain.StatusApplied},
			{Name: "web-2", Desired: domain.EnsureStopped, Observed: domain.EnsureRunning, Status: domain.StatusError,
				Actions: []domain.Action{domain.ActionStop},
				Error:   apperrors.New(apperrors.CodePlatformAPIError, "throttled")},
		},
	}
	require.NoError(t, r.Report(context.Background(), result))

	var got jsonReport
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "pass-1", got.PassID)
	assert.Equal(t, "aws_ec2", got.APIVersion)
	assert.Equal(t, jsonSummary{Total: 2, Applied: 1, Errors: 1}, got.Summary)
	require.Len(t, got.Results, 2)
	assert.Equal(t, []domain.Action{domain.ActionCreate}, got.Results[0].Actions)
	assert.Empty(t, got.Results[0].ErrorMessage)
	assert.Contains(t, got.Results[1].ErrorMessage, "throttled")
	assert.Contains(t, buf.String(), "\n  \"summary\"")
}

func TestReportInventory(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporterWithWriter(Config{}, &buf, log.NewDiscard())

	machines := []domain.MachineDescriptor{
		{Name: "web-1", Ensure: domain.EnsureRunning, Location: "eu-west-1a",
			Handle: &domain.MachineRecord{ID: "i-0abc"}},
		{Name: "gone", Ensure: domain.EnsureAbsent},
	}
	require.NoError(t, r.ReportInventory(context.Background(), machines))

	var got struct {
		Machines []jsonMachine `json:"machines"`
	}
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Machines, 2)
	assert.Equal(t, "i-0abc", got.Machines[0].ID)
	assert.Equal(t, domain.EnsureRunning, got.Machines[0].State)
	assert.Empty(t, got.Machines[1].ID)
}

func TestReport_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporterWithWriter(Config{}, &buf, log.NewDiscard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Report(ctx, domain.PassResult{Results: []domain.ActionResult{{Name: "vm"}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}
