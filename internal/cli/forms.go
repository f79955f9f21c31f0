package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

// backValue is the select option that steps back instead of answering.
const backValue = "\x00back"

// backCommand typed into a text field steps back.
const backCommand = ":back"

// FormDriver walks a session with huh forms, one form per step.
type FormDriver struct {
	Output  io.Writer
	Variant domain.Variant
	Report  func(*domain.SubmissionRecord) string
	// ReadFile loads upload paths. Defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)

	// Accessible switches huh to plain prompts read from Input.
	Accessible bool
	Input      io.Reader
}

type formAnswer struct {
	Choice string
	Text   string
	Picked []string
	Retry  bool
}

// Run starts a session and loops until it is submitted or the user quits.
func (d *FormDriver) Run(ctx context.Context, w *triage.Wizard) (*domain.SubmissionRecord, error) {
	s, err := w.Start(ctx, d.Variant)
	if err != nil {
		return nil, err
	}

	for {
		view, err := w.View(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		if view.Step.Terminal {
			if view.Answers[domain.KeyClosing] == "Reset" {
				if s, err = w.Reset(ctx, s.ID); err != nil {
					return nil, err
				}
				continue
			}
			return d.submit(ctx, w, s.ID)
		}

		ans := &formAnswer{}
		form := d.configure(buildForm(view, ans))
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil, triage.ErrAborted
			}
			return nil, err
		}

		if view.Step.Kind == domain.KindComputedResult && !ans.Retry {
			return nil, triage.ErrAborted
		}

		var next *domain.Session
		answer, back := formInput(view.Step, ans)
		switch {
		case back:
			next, err = w.Back(ctx, s.ID)
		case view.Step.Kind == domain.KindImageUpload && answer != nil:
			next, err = d.upload(ctx, w, s.ID, answer.(string))
		default:
			next, err = w.Advance(ctx, s.ID, answer)
		}
		if next != nil {
			s = next
		}
		if err != nil {
			fmt.Fprintf(d.Output, "! %v\n", err)
		}
	}
}

func (d *FormDriver) configure(f *huh.Form) *huh.Form {
	f = f.WithAccessible(d.Accessible).WithShowHelp(true)
	if d.Output != nil {
		f = f.WithOutput(d.Output)
	}
	if d.Input != nil {
		f = f.WithInput(d.Input)
	}
	return f
}

func (d *FormDriver) upload(ctx context.Context, w *triage.Wizard, id, path string) (*domain.Session, error) {
	read := d.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return nil, err
	}
	return w.Upload(ctx, id, data, path)
}

func (d *FormDriver) submit(ctx context.Context, w *triage.Wizard, id string) (*domain.SubmissionRecord, error) {
	rec, err := w.Submit(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Report != nil {
		fmt.Fprintln(d.Output, d.Report(rec))
	}
	return rec, nil
}

// buildForm maps the current step onto huh fields bound to ans.
func buildForm(v *triage.View, ans *formAnswer) *huh.Form {
	st := v.Step
	hint := stepHint(v)

	var fields []huh.Field
	switch st.Kind {
	case domain.KindChoice:
		opts := make([]huh.Option[string], 0, len(st.Choices)+1)
		for _, c := range st.Choices {
			opts = append(opts, huh.NewOption(c.Label, c.Value))
		}
		if v.CanGoBack {
			opts = append(opts, huh.NewOption("<- Back", backValue))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title(st.Prompt).
			Description(v.Error).
			Options(opts...).
			Value(&ans.Choice))

	case domain.KindNLPInput:
		fields = append(fields, huh.NewText().
			Title(st.Prompt).
			Description(hint).
			Value(&ans.Text))

	case domain.KindSymptomPicker:
		fields = append(fields,
			huh.NewMultiSelect[string]().
				Title(st.Prompt).
				Options(huh.NewOptions(st.Suggestions...)...).
				Value(&ans.Picked),
			huh.NewInput().
				Title("Other symptoms (comma separated)").
				Description(hint).
				Value(&ans.Text))

	case domain.KindComputedResult:
		fields = append(fields, huh.NewConfirm().
			Title(st.Prompt).
			Description(v.Error).
			Affirmative("Retry").
			Negative("Quit").
			Value(&ans.Retry))

	default:
		in := huh.NewInput().
			Title(st.Prompt).
			Description(hint).
			Value(&ans.Text)
		if st.Numeric {
			in = in.Validate(numberValidator(st))
		}
		fields = append(fields, in)
	}
	return huh.NewForm(huh.NewGroup(fields...))
}

func stepHint(v *triage.View) string {
	var parts []string
	if v.Error != "" {
		parts = append(parts, v.Error)
	}
	if v.Step.Optional {
		parts = append(parts, "leave blank to skip")
	}
	if v.Step.Kind == domain.KindImageUpload {
		parts = append(parts, "path to a JPEG or PNG file")
	}
	if v.CanGoBack {
		parts = append(parts, backCommand+" to go back")
	}
	return strings.Join(parts, ", ")
}

// numberValidator checks numeric answers before they reach the wizard.
func numberValidator(st triage.StepView) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if (s == "" && st.Optional) || s == backCommand {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.New("enter a number")
		}
		if st.Min != nil && n < *st.Min {
			return fmt.Errorf("must be at least %g", *st.Min)
		}
		if st.Max != nil && n > *st.Max {
			return fmt.Errorf("must be at most %g", *st.Max)
		}
		return nil
	}
}

// formInput converts the filled form into a wizard answer. A nil answer
// skips an optional step.
func formInput(st triage.StepView, ans *formAnswer) (answer any, back bool) {
	text := strings.TrimSpace(ans.Text)
	if text == backCommand {
		return nil, true
	}
	switch st.Kind {
	case domain.KindChoice:
		if ans.Choice == backValue {
			return nil, true
		}
		return ans.Choice, false
	case domain.KindSymptomPicker:
		extra, _ := flow.SymptomList(text)
		list := flow.MergeSymptoms(ans.Picked, extra...)
		if len(list) == 0 {
			return nil, false
		}
		return list, false
	case domain.KindComputedResult:
		return nil, false
	}
	if text == "" {
		return nil, false
	}
	return text, false
}
