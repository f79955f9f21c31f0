/*
Package flow implements the questionnaire graph of the triage wizard.

A Graph is an immutable table of steps keyed by integer id. It is built
either programmatically with the fluent Builder or compiled from a YAML
Definition for one Variant:

	g, err := flow.Default(domain.VariantBilingual)
	s := domain.NewSession(id, g.Variant(), g.InitialStepID())
	s, err = flow.Advance(g, s, "English")

Advance and Back are pure: they never mutate the session they are given
and return a new snapshot instead. Graphs may contain cycles.
*/
package flow
