package tui

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/triage/pkg/domain"
)

// ReportView is the typed reading of a triage report. Fields the service
// did not send stay zero.
type ReportView struct {
	JobID     string `mapstructure:"jobId"`
	CreatedAt string `mapstructure:"createdAt"`
	Patient   struct {
		Age    *float64 `mapstructure:"age"`
		Gender *string  `mapstructure:"gender"`
	} `mapstructure:"patient"`
	ExtractedSymptoms []struct {
		Name   string  `mapstructure:"name"`
		Weight float64 `mapstructure:"weight"`
	} `mapstructure:"extractedSymptoms"`
	ModelVotes []struct {
		Model      string  `mapstructure:"model"`
		Severity   int     `mapstructure:"severity"`
		Confidence float64 `mapstructure:"confidence"`
	} `mapstructure:"modelVotes"`
	FinalDecision struct {
		Severity  int    `mapstructure:"severity"`
		Rationale string `mapstructure:"rationale"`
	} `mapstructure:"finalDecision"`
}

// DecodeReport reads a report loosely: numbers sent as strings and
// integral floats are accepted.
func DecodeReport(r domain.Report) (ReportView, error) {
	var v ReportView
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &v,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return v, err
	}
	if err := dec.Decode(map[string]any(r)); err != nil {
		return v, fmt.Errorf("decode report: %w", err)
	}
	return v, nil
}

// ReportMarkdown formats a submission record as markdown.
func ReportMarkdown(rec *domain.SubmissionRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Triage report\n\n")

	v, err := DecodeReport(rec.Report)
	if err != nil {
		fmt.Fprintf(&sb, "Job `%s`: the report could not be read (%v).\n", rec.JobID, err)
		return sb.String()
	}

	jobID := v.JobID
	if jobID == "" {
		jobID = rec.JobID
	}
	fmt.Fprintf(&sb, "- **Job:** `%s`\n", jobID)
	if v.CreatedAt != "" {
		fmt.Fprintf(&sb, "- **Created:** %s\n", v.CreatedAt)
	}
	if name, ok := rec.InputSnapshot.Answers[domain.KeyFullName].(string); ok && name != "" {
		fmt.Fprintf(&sb, "- **Patient:** %s\n", name)
	}
	if v.Patient.Age != nil {
		fmt.Fprintf(&sb, "- **Age:** %g\n", *v.Patient.Age)
	}
	if v.Patient.Gender != nil {
		fmt.Fprintf(&sb, "- **Gender:** %s\n", *v.Patient.Gender)
	}

	if len(v.ExtractedSymptoms) > 0 {
		sb.WriteString("\n## Symptoms\n\n| Symptom | Weight |\n|---|---|\n")
		for _, s := range v.ExtractedSymptoms {
			fmt.Fprintf(&sb, "| %s | %.2f |\n", s.Name, s.Weight)
		}
	}
	if len(v.ModelVotes) > 0 {
		sb.WriteString("\n## Model votes\n\n| Model | Severity | Confidence |\n|---|---|---|\n")
		for _, m := range v.ModelVotes {
			fmt.Fprintf(&sb, "| %s | %d | %.0f%% |\n", m.Model, m.Severity, m.Confidence*100)
		}
	}

	sb.WriteString("\n## Decision\n\n")
	fmt.Fprintf(&sb, "**Severity %d/5.** %s\n", v.FinalDecision.Severity, v.FinalDecision.Rationale)
	return sb.String()
}

// NewReportFormatter renders reports through render, falling back to the
// raw markdown when rendering fails.
func NewReportFormatter(render func(string) (string, error)) func(*domain.SubmissionRecord) string {
	return func(rec *domain.SubmissionRecord) string {
		md := ReportMarkdown(rec)
		if render == nil {
			return md
		}
		out, err := render(md)
		if err != nil {
			return md
		}
		return out
	}
}
