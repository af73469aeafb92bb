package text

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	apperrors "github.com/olusolaa/vm-reconciler/internal/errors"
)

const ReporterTypeText = "text"

type Config struct {
	NoColor bool `mapstructure:"no_color" yaml:"no_color"`
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	if cfg.NoColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}
	return NewReporterWithWriter(cfg, os.Stdout, logger), nil
}

// NewReporterWithWriter leaves color detection to the caller.
func NewReporterWithWriter(cfg Config, w io.Writer, logger ports.Logger) *Reporter {
	return &Reporter{
		config: cfg,
		writer: w,
		logger: logger,
	}
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func (r *Reporter) Report(ctx context.Context, result domain.PassResult) error {
	title := "Reconciliation Report"
	if result.DryRun {
		title = "Reconciliation Plan"
	}
	fmt.Fprintf(r.writer, "%s (platform: %s, pass: %s)\n", title, result.APIVersion, result.PassID)

	if len(result.Results) == 0 {
		fmt.Fprintln(r.writer, "No machines declared in the manifest.")
		return nil
	}

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	magenta := color.New(color.FgMagenta).SprintFunc()

	fmt.Fprintln(tw, "Status\tMachine\tObserved\tDesired\tActions\tDetails")
	fmt.Fprintln(tw, "------\t-------\t--------\t-------\t-------\t-------")

	counts := make(map[domain.ActionStatus]int)
	for _, res := range result.Results {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		counts[res.Status]++

		var statusStr, details string
		switch res.Status {
		case domain.StatusApplied:
			statusStr = green("[APPLIED]")
			details = fmt.Sprintf("now %s", res.Final)
		case domain.StatusPlanned:
			statusStr = cyan("[PLANNED]")
			details = fmt.Sprintf("would become %s", res.Final)
		case domain.StatusNoop:
			statusStr = green("[OK]")
			details = "Already in desired state."
		case domain.StatusSkipped:
			statusStr = yellow("[SKIPPED]")
			details = "Not processed after an earlier failure."
		case domain.StatusError:
			statusStr = red("[ERROR]")
			details = formatError(res.Error)
		default:
			statusStr = magenta("[UNKNOWN]")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			statusStr, res.Name, orDash(string(res.Observed)), res.Desired, formatActions(res.Actions), details)
	}

	fmt.Fprintln(tw, "\nSummary:")
	fmt.Fprintln(tw, "-------")
	fmt.Fprintf(tw, "Machines Declared:\t%d\n", len(result.Results))
	if result.DryRun {
		fmt.Fprintf(tw, "Planned:\t%s\n", cyan(counts[domain.StatusPlanned]))
	} else {
		fmt.Fprintf(tw, "Applied:\t%s\n", green(counts[domain.StatusApplied]))
	}
	fmt.Fprintf(tw, "Unchanged:\t%s\n", green(counts[domain.StatusNoop]))
	fmt.Fprintf(tw, "Skipped:\t%s\n", yellow(counts[domain.StatusSkipped]))
	fmt.Fprintf(tw, "Errors:\t%s\n", red(counts[domain.StatusError]))

	return nil
}

func (r *Reporter) ReportInventory(ctx context.Context, machines []domain.MachineDescriptor) error {
	if len(machines) == 0 {
		fmt.Fprintln(r.writer, "No machines found on the platform.")
		return nil
	}

	sorted := make([]domain.MachineDescriptor, len(machines))
	copy(sorted, machines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintln(tw, "Name\tState\tLocation\tSize\tImage\tUser")
	fmt.Fprintln(tw, "----\t-----\t--------\t----\t-----\t----")
	for _, m := range sorted {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		state := yellow(m.Ensure)
		if m.Ensure == domain.EnsureRunning {
			state = green(m.Ensure)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name, state, orDash(m.Location), orDash(m.Size), orDash(m.Image), orDash(m.Username))
	}
	fmt.Fprintf(tw, "\nTotal Machines:\t%d\n", len(sorted))
	return nil
}

func formatActions(actions []domain.Action) string {
	if len(actions) == 0 {
		return "-"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}

func formatError(err error) string {
	if err == nil {
		return "Failed."
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.IsUserFacing {
		details := appErr.Message
		if appErr.SuggestedAction != "" {
			details += fmt.Sprintf(" (%s)", appErr.SuggestedAction)
		}
		return details
	}
	return formatValue(err.Error())
}

func formatValue(str string) string {
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen-3] + "..."
	}
	return str
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
