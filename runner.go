package triage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
)

// Runner drives a Wizard session over line-oriented IO. It backs the
// non-interactive CLI mode and makes end-to-end tests easy to script.
//
// Input conventions: choices accept their label, value or 1-based number;
// symptom pickers take a comma separated list; image steps take a file
// path; "skip" leaves an optional step blank; "back" returns to the
// previous step; "exit" or "quit" stops without submitting.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Variant  domain.Variant
	Renderer ContentRenderer
	// Report formats the submission record. Defaults to indented JSON.
	Report func(*domain.SubmissionRecord) string
	// ReadFile loads upload paths. Defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)
}

// ContentRenderer transforms prompt text before output, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

// ErrAborted is returned when the user quits before submitting.
var ErrAborted = errors.New("wizard aborted")

// NewRunner creates a Runner over in and out.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out, Variant: domain.VariantBilingual}
}

// Run starts a session and loops until it is submitted, the user quits or
// input ends. It returns the submission record on success.
func (r *Runner) Run(ctx context.Context, w *Wizard) (*domain.SubmissionRecord, error) {
	if r.Input == nil {
		return nil, fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return nil, fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)

	s, err := w.Start(ctx, r.Variant)
	if err != nil {
		return nil, err
	}
	if !r.Headless {
		fmt.Fprintln(r.Output, "--- Triage ---")
	}

	lastShown := -1
	for {
		view, err := w.View(ctx, s.ID)
		if err != nil {
			return nil, err
		}

		if view.Step.Terminal {
			if s.Answers[domain.KeyClosing] == "Reset" {
				if s, err = w.Reset(ctx, s.ID); err != nil {
					return nil, err
				}
				lastShown = -1
				continue
			}
			r.show(view, lastShown)
			return r.submit(ctx, w, s.ID)
		}

		if view.Step.ID != lastShown {
			r.show(view, lastShown)
			lastShown = view.Step.ID
		}

		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := lines.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || text == "") {
			if errors.Is(err, io.EOF) {
				return nil, ErrAborted
			}
			return nil, fmt.Errorf("input error: %w", err)
		}
		input := strings.TrimSpace(text)

		switch strings.ToLower(input) {
		case "exit", "quit":
			fmt.Fprintln(r.Output, "Bye!")
			return nil, ErrAborted
		case "back":
			if next, err := w.Back(ctx, s.ID); err != nil {
				r.warn(err)
			} else {
				s = next
				lastShown = -1
			}
			continue
		}

		next, err := r.answer(ctx, w, s.ID, view.Step, input)
		if next != nil {
			s = next
		}
		if err != nil {
			r.warn(err)
		}
	}
}

func (r *Runner) answer(ctx context.Context, w *Wizard, id string, step StepView, input string) (*domain.Session, error) {
	if strings.EqualFold(input, "skip") {
		return w.Advance(ctx, id, nil)
	}
	switch step.Kind {
	case domain.KindChoice:
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(step.Choices) {
			return w.Advance(ctx, id, step.Choices[n-1].Value)
		}
	case domain.KindImageUpload:
		if input == "" {
			return w.Advance(ctx, id, nil)
		}
		read := r.ReadFile
		if read == nil {
			read = os.ReadFile
		}
		data, err := read(input)
		if err != nil {
			return nil, err
		}
		return w.Upload(ctx, id, data, input)
	case domain.KindComputedResult:
		// A failed computation is retried on any input.
		return w.Advance(ctx, id, nil)
	}
	return w.Advance(ctx, id, input)
}

func (r *Runner) submit(ctx context.Context, w *Wizard, id string) (*domain.SubmissionRecord, error) {
	rec, err := w.Submit(ctx, id)
	if err != nil {
		return nil, err
	}
	report := r.Report
	if report == nil {
		report = jsonReport
	}
	fmt.Fprintln(r.Output, report(rec))
	return rec, nil
}

func (r *Runner) show(v *View, lastShown int) {
	if r.Headless || v.Step.ID == lastShown {
		return
	}
	text := v.Step.Prompt
	if r.Renderer != nil {
		if rendered, err := r.Renderer(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(text))
	for i, c := range v.Step.Choices {
		fmt.Fprintf(r.Output, "  %d) %s\n", i+1, c.Label)
	}
	if len(v.Step.Suggestions) > 0 {
		fmt.Fprintf(r.Output, "  (e.g. %s)\n", strings.Join(v.Step.Suggestions, ", "))
	}
	if v.Step.Optional {
		fmt.Fprintln(r.Output, "  (type skip to leave blank)")
	}
}

func (r *Runner) warn(err error) {
	fmt.Fprintf(r.Output, "! %v\n", err)
}

func jsonReport(rec *domain.SubmissionRecord) string {
	data, err := json.MarshalIndent(rec.Report, "", "  ")
	if err != nil {
		return fmt.Sprintf("report %s: %v", rec.JobID, err)
	}
	return string(data)
}
