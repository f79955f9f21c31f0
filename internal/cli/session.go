package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/triage/internal/presentation/tui"
	"github.com/aretw0/triage/pkg/domain"
)

// ListSessions prints the stored session ids with their position.
func ListSessions(ctx context.Context, app *App, out io.Writer) error {
	ids, err := app.Wizard.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}
	fmt.Fprintln(out, "Sessions:")
	for _, id := range ids {
		s, err := app.Wizard.Session(ctx, id)
		if err != nil {
			fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(out, "- %s  step %d  %s  updated %s\n", id, s.CurrentStepID, s.Status, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// InspectSession prints the session view as indented JSON.
func InspectSession(ctx context.Context, app *App, out io.Writer, id string) error {
	view, err := app.Wizard.View(ctx, id)
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", id, err)
	}
	return writeIndented(out, view)
}

// RemoveSessions deletes every id, reporting each outcome.
func RemoveSessions(ctx context.Context, app *App, out io.Writer, ids ...string) error {
	var errs []error
	for _, id := range ids {
		if err := app.Wizard.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
			continue
		}
		fmt.Fprintf(out, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}

// PrintHistory lists submission records, most recent first. With asJSON
// the raw records are printed.
func PrintHistory(ctx context.Context, app *App, out io.Writer, asJSON bool) error {
	recs, err := app.Wizard.History(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeIndented(out, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No reports yet.")
		return nil
	}
	for _, rec := range recs {
		v, err := tui.DecodeReport(rec.Report)
		if err != nil {
			fmt.Fprintf(out, "%s  %s  (unreadable report)\n", rec.SubmittedAt.Format("2006-01-02 15:04"), rec.JobID)
			continue
		}
		fmt.Fprintf(out, "%s  %s  severity %d/5\n", rec.SubmittedAt.Format("2006-01-02 15:04"), rec.JobID, v.FinalDecision.Severity)
	}
	return nil
}

// Login signs in and stores the token.
func Login(ctx context.Context, app *App, out io.Writer, email, password string) error {
	res, err := app.Wizard.Accounts().Login(ctx, email, password)
	if err != nil {
		return err
	}
	printSystemMessage(out, "Signed in as %s.", displayName(res.User))
	return nil
}

// Register creates an account and signs in.
func Register(ctx context.Context, app *App, out io.Writer, creds domain.Credentials) error {
	res, err := app.Wizard.Accounts().Register(ctx, creds)
	if err != nil {
		return err
	}
	printSystemMessage(out, "Account created for %s.", displayName(res.User))
	return nil
}

// Logout drops the stored token.
func Logout(ctx context.Context, app *App, out io.Writer) error {
	if err := app.Wizard.Accounts().Logout(ctx); err != nil {
		return err
	}
	printSystemMessage(out, "Signed out.")
	return nil
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func writeIndented(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
