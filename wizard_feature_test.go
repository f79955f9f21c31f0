package triage_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/pkg/adapters/remote"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

// wizardWorld holds the state of one scenario.
type wizardWorld struct {
	mock    *remote.Mock
	wizard  *triage.Wizard
	session *domain.Session
	lastErr error
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeWizardScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func initializeWizardScenario(sc *godog.ScenarioContext) {
	ww := &wizardWorld{}

	sc.Step(`^a fresh wizard using the "([^"]*)" flow$`, ww.freshWizard)
	sc.Step(`^the triage service fails to accept submissions$`, ww.serviceFails)
	sc.Step(`^I answer "([^"]*)"$`, ww.answer)
	sc.Step(`^I skip (\d+) optional steps$`, ww.skip)
	sc.Step(`^I submit the session$`, ww.submit)
	sc.Step(`^the session should be completed on step (\d+)$`, ww.completedOn)
	sc.Step(`^the session should be on step (\d+)$`, ww.onStep)
	sc.Step(`^the answer should be rejected with bound "([^"]*)"$`, ww.rejectedWithBound)
	sc.Step(`^the answer should be rejected because the session is terminated$`, ww.rejectedTerminated)
	sc.Step(`^the newest history record should have "([^"]*)" set to "([^"]*)"$`, ww.newestRecordHas)
	sc.Step(`^the submission should fail$`, ww.submissionFailed)
	sc.Step(`^the session should still have "([^"]*)" set to "([^"]*)"$`, ww.sessionHas)
	sc.Step(`^the history should be empty$`, ww.historyEmpty)
}

func (ww *wizardWorld) freshWizard(ctx context.Context, variant string) error {
	v, err := flow.ParseVariant(variant)
	if err != nil {
		return err
	}
	ww.mock = remote.NewMock()
	ww.wizard, err = triage.New(ww.mock)
	if err != nil {
		return err
	}
	ww.session, err = ww.wizard.Start(ctx, v)
	return err
}

func (ww *wizardWorld) serviceFails() error {
	ww.mock.Fail(remote.OpSubmit, errors.New("service unavailable"))
	return nil
}

func (ww *wizardWorld) answer(ctx context.Context, value string) error {
	s, err := ww.wizard.Advance(ctx, ww.session.ID, value)
	ww.lastErr = err
	if s != nil {
		ww.session = s
	}
	return nil
}

func (ww *wizardWorld) skip(ctx context.Context, n int) error {
	for range n {
		s, err := ww.wizard.Advance(ctx, ww.session.ID, nil)
		if err != nil {
			return err
		}
		ww.session = s
	}
	return nil
}

func (ww *wizardWorld) submit(ctx context.Context) error {
	_, ww.lastErr = ww.wizard.Submit(ctx, ww.session.ID)
	return nil
}

func (ww *wizardWorld) onStep(id int) error {
	if ww.session.CurrentStepID != id {
		return fmt.Errorf("expected step %d, got %d (last error: %v)", id, ww.session.CurrentStepID, ww.lastErr)
	}
	return nil
}

func (ww *wizardWorld) completedOn(id int) error {
	if err := ww.onStep(id); err != nil {
		return err
	}
	if !ww.session.Completed() {
		return fmt.Errorf("session is %s, expected completed", ww.session.Status)
	}
	return nil
}

func (ww *wizardWorld) rejectedWithBound(bound string) error {
	var ve *domain.ValidationError
	if !errors.As(ww.lastErr, &ve) {
		return fmt.Errorf("expected a validation error, got %v", ww.lastErr)
	}
	if ve.Bound != bound {
		return fmt.Errorf("expected bound %q, got %q", bound, ve.Bound)
	}
	return nil
}

func (ww *wizardWorld) rejectedTerminated() error {
	var te *domain.SessionTerminatedError
	if !errors.As(ww.lastErr, &te) {
		return fmt.Errorf("expected a terminated session error, got %v", ww.lastErr)
	}
	return nil
}

func (ww *wizardWorld) newestRecordHas(ctx context.Context, key, want string) error {
	if ww.lastErr != nil {
		return fmt.Errorf("submit failed: %w", ww.lastErr)
	}
	history, err := ww.wizard.History(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("history is empty")
	}
	if got := history[0].InputSnapshot.Answers[key]; got != want {
		return fmt.Errorf("expected %s=%q, got %v", key, want, got)
	}
	return nil
}

func (ww *wizardWorld) submissionFailed() error {
	var te *domain.TransportError
	if !errors.As(ww.lastErr, &te) {
		return fmt.Errorf("expected a transport error, got %v", ww.lastErr)
	}
	return nil
}

func (ww *wizardWorld) sessionHas(ctx context.Context, key, want string) error {
	s, err := ww.wizard.Session(ctx, ww.session.ID)
	if err != nil {
		return err
	}
	if got := s.Answers[key]; got != want {
		return fmt.Errorf("expected %s=%q, got %v", key, want, got)
	}
	return nil
}

func (ww *wizardWorld) historyEmpty(ctx context.Context) error {
	history, err := ww.wizard.History(ctx)
	if err != nil {
		return err
	}
	if len(history) != 0 {
		return fmt.Errorf("expected empty history, got %d records", len(history))
	}
	return nil
}
