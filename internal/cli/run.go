package cli

import (
	"context"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/presentation/tui"
	"github.com/aretw0/triage/pkg/domain"
)

// RunOptions configures the run command.
type RunOptions struct {
	Variant domain.Variant
	// Headless prints nothing but reports and errors; input is read line by line.
	Headless bool
	// Plain forces the line prompt even on a terminal.
	Plain bool
	// Token overrides the stored account token for this run.
	Token string
}

// RunWizard walks one session to submission. On a terminal it uses huh
// forms, otherwise the line oriented triage.Runner.
func RunWizard(ctx context.Context, app *App, in io.Reader, out io.Writer, opts RunOptions) (*domain.SubmissionRecord, error) {
	if opts.Token != "" {
		ctx = triage.WithToken(ctx, opts.Token)
	}
	if opts.Variant == "" {
		opts.Variant = domain.VariantBilingual
	}

	var (
		rec *domain.SubmissionRecord
		err error
	)
	if opts.Headless {
		// Headless runs print the raw JSON report.
		r := triage.NewRunner(in, out)
		r.Headless = true
		r.Variant = opts.Variant
		return runInterruptible(ctx, func() (*domain.SubmissionRecord, error) {
			return r.Run(ctx, app.Wizard)
		})
	}

	tui.PrintBanner(out, triage.Version)
	render := tui.NewRenderer()
	report := tui.NewReportFormatter(render)

	if !opts.Plain && isTerminal(in) {
		d := &FormDriver{Output: out, Variant: opts.Variant, Report: report}
		rec, err = runInterruptible(ctx, func() (*domain.SubmissionRecord, error) {
			return d.Run(ctx, app.Wizard)
		})
	} else {
		r := triage.NewRunner(in, out)
		r.Variant = opts.Variant
		r.Renderer = render
		r.Report = report
		rec, err = runInterruptible(ctx, func() (*domain.SubmissionRecord, error) {
			return r.Run(ctx, app.Wizard)
		})
	}
	if err != nil {
		return nil, err
	}
	printSystemMessage(out, "Submitted as job %s.", rec.JobID)
	return rec, nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
