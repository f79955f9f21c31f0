/*
Package triage is a medical triage wizard: a guided questionnaire that
collects patient details and symptoms, submits them to a remote triage
service and keeps a history of the generated reports.

# Concept

The questionnaire is an immutable flow graph (package flow) of typed steps:
choices, free text, symptom pickers, image uploads, computed results and a
terminal summary. Sessions are plain values advanced by pure transitions;
the Wizard persists them explicitly after every change, serializes access
per session and runs the submission pipeline (package pipeline).

Input modalities:

  - Free text description of symptoms ("nlp-input").
  - A structured symptom picker.
  - A skin photo, analyzed by a computed step before submission.

An optional voice recording is uploaded alongside the submission on a
best-effort basis.

# Usage

	remote := remote.NewClient("http://localhost:8000")
	w, err := triage.New(remote, triage.WithStore(file.New(".triage/store")))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	s, _ := w.Start(ctx, domain.VariantPlain)
	s, err = w.Advance(ctx, s.ID, "English")
	// ... answer the remaining steps ...
	rec, err := w.Submit(ctx, s.ID)
*/
package triage
