// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package portal drives one search session on the judgment portal: load the
// home page, pass the image challenge with bounded retries, fill in the
// advanced search form, and hand the results page to the caller.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/judgment-engine/internal/browser"
	"github.com/pdiddy/judgment-engine/internal/challenge"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Solver reads a candidate answer from a captured challenge.
type Solver interface {
	Solve(ctx context.Context, c challenge.Capture) (string, error)
}

// ResultsFunc consumes the results page while the session is still open.
type ResultsFunc func(ctx context.Context, d browser.Driver) error

// Transition is one state change of a session.
type Transition struct {
	From   types.SessionState `json:"from" yaml:"from"`
	To     types.SessionState `json:"to" yaml:"to"`
	Reason string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	At     time.Time          `json:"at" yaml:"at"`
}

// Outcome describes how a session ended.
type Outcome struct {
	State       types.SessionState       `json:"state" yaml:"state"`
	Attempts    []types.ChallengeAttempt `json:"attempts" yaml:"attempts"`
	Transitions []Transition             `json:"transitions" yaml:"transitions"`
}

// Controller runs search sessions. A Controller may run several searches
// in sequence; each Search owns its own browser session.
type Controller struct {
	Launcher  browser.Launcher
	Solver    Solver
	Config    types.PortalConfig
	Selectors Selectors
	Logger    *slog.Logger
}

// New creates a Controller with default selectors. Zero config values are
// replaced by their defaults.
func New(launch browser.Launcher, solver Solver, cfg types.PortalConfig, logger *slog.Logger) *Controller {
	full := types.PipelineConfig{Portal: cfg}
	full.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Launcher:  launch,
		Solver:    solver,
		Config:    full.Portal,
		Selectors: DefaultSelectors(),
		Logger:    logger,
	}
}

// Search validates criteria, opens a browser session, and walks the session
// to the results page, where onResults is called. The browser session is
// closed exactly once before Search returns. Fatal failures are returned as
// *types.StageError wrapping one of the navigation sentinels.
func (c *Controller) Search(ctx context.Context, criteria types.SearchCriteria, onResults ResultsFunc) (Outcome, error) {
	if err := criteria.Validate(); err != nil {
		return Outcome{State: types.StateTerminated}, err
	}

	s := &session{
		cfg:      c.Config,
		sel:      c.Selectors,
		solver:   c.Solver,
		criteria: criteria,
		logger:   c.Logger,
		state:    types.StateHome,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	d, err := c.Launcher(ctx)
	if err != nil {
		s.moveTo(types.StateTerminated, "browser launch failed")
		return s.outcome(), &types.StageError{
			State: types.StateHome,
			Err:   fmt.Errorf("%w: launching browser: %v", types.ErrPortalUnreachable, err),
		}
	}
	s.driver = d

	var once sync.Once
	closeSession := func() {
		once.Do(func() {
			if err := d.Close(); err != nil {
				s.logger.Warn("closing browser session", "error", err)
			}
		})
	}
	defer closeSession()

	err = s.run(ctx, onResults)
	closeSession()
	return s.outcome(), err
}

// session holds the state of one Search. It is driven from one goroutine.
type session struct {
	cfg      types.PortalConfig
	sel      Selectors
	solver   Solver
	criteria types.SearchCriteria
	logger   *slog.Logger
	driver   browser.Driver

	state       types.SessionState
	attempts    []types.ChallengeAttempt
	transitions []Transition
}

func (s *session) outcome() Outcome {
	return Outcome{State: s.state, Attempts: s.attempts, Transitions: s.transitions}
}

func (s *session) moveTo(next types.SessionState, reason string) {
	s.transitions = append(s.transitions, Transition{From: s.state, To: next, Reason: reason, At: time.Now()})
	s.logger.Info("session state", "from", s.state.String(), "to", next.String(), "reason", reason)
	s.state = next
}

// fail terminates the session and wraps err with the state it happened in.
func (s *session) fail(err error) error {
	from := s.state
	s.moveTo(types.StateTerminated, err.Error())
	return &types.StageError{State: from, Err: err}
}

func (s *session) run(ctx context.Context, onResults ResultsFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return s.fail(err)
		}
		switch s.state {
		case types.StateHome:
			if err := s.loadHome(ctx); err != nil {
				return s.fail(err)
			}
			s.moveTo(types.StateVerificationPending, "portal loaded")

		case types.StateVerificationPending:
			if err := s.verify(ctx); err != nil {
				return s.fail(err)
			}
			s.moveTo(types.StateAdvancedSearchReady, "verification passed")

		case types.StateAdvancedSearchReady:
			if err := s.applyCriteria(ctx); err != nil {
				return s.fail(err)
			}
			s.moveTo(types.StateFiltered, "criteria applied")

		case types.StateFiltered:
			ok, reason, err := s.submitSearch(ctx)
			if err != nil {
				return s.fail(err)
			}
			if !ok {
				s.moveTo(types.StateVerificationPending, reason)
				continue
			}
			s.moveTo(types.StateResultsListed, "results listed")

		case types.StateResultsListed:
			if onResults != nil {
				if err := onResults(ctx, s.driver); err != nil {
					return s.fail(err)
				}
			}
			s.moveTo(types.StateTerminated, "results consumed")
			return nil

		default:
			return nil
		}
	}
}

func (s *session) loadHome(ctx context.Context) error {
	if err := s.driver.Navigate(ctx, s.cfg.URL); err != nil {
		return fmt.Errorf("%w: %v", types.ErrPortalUnreachable, err)
	}
	if err := s.driver.WaitVisible(ctx, s.sel.ChallengeImage, s.cfg.ElementTimeout); err != nil {
		return fmt.Errorf("%w: challenge not shown: %v", types.ErrPortalUnreachable, err)
	}
	return nil
}

// maxAttempts is the session's verification budget: one initial attempt
// plus the configured retries.
func (s *session) maxAttempts() int {
	return 1 + s.cfg.MaxRetries
}

// verify solves and submits challenges until the advanced search form is
// confirmed or the attempt budget is spent. Every attempt after the first
// in a session starts from a fresh challenge image.
func (s *session) verify(ctx context.Context) error {
	for {
		if len(s.attempts) >= s.maxAttempts() {
			return fmt.Errorf("%w: %d attempts failed", types.ErrVerificationExhausted, len(s.attempts))
		}
		if len(s.attempts) > 0 {
			if err := s.freshChallenge(ctx); err != nil {
				return err
			}
		}

		ok, err := s.attempt(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

// attempt runs one solve-and-submit cycle and records its outcome.
func (s *session) attempt(ctx context.Context) (bool, error) {
	capture, err := challenge.CaptureFrom(ctx, s.driver, s.sel.ChallengeImage)
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrFormFieldMissing, err)
	}
	a := types.ChallengeAttempt{Index: len(s.attempts) + 1, Outcome: types.AttemptPending}
	if crop, err := challenge.Crop(capture.Screenshot, capture.Region); err == nil {
		a.Image = crop
	}

	candidate, err := s.solver.Solve(ctx, capture)
	if err != nil {
		// Treated as a blank answer; the portal rejects it and the attempt counts.
		s.logger.Warn("solving challenge", "attempt", a.Index, "error", err)
	}
	a.Candidate = candidate

	if err := s.driver.Clear(ctx, s.sel.ChallengeInput); err != nil {
		return false, fmt.Errorf("%w: challenge input: %v", types.ErrFormFieldMissing, err)
	}
	if err := s.driver.SendKeys(ctx, s.sel.ChallengeInput, candidate); err != nil {
		return false, fmt.Errorf("%w: challenge input: %v", types.ErrFormFieldMissing, err)
	}
	if err := s.driver.Click(ctx, s.sel.AdvancedSearch); err != nil {
		return false, fmt.Errorf("%w: advanced search link: %v", types.ErrFormFieldMissing, err)
	}

	ok, err := s.confirm(ctx, s.sel.AdvancedReady, s.cfg.ConfirmTimeout)
	if err != nil {
		return false, err
	}
	a.Outcome = types.AttemptFailure
	if ok {
		a.Outcome = types.AttemptSuccess
	}
	s.attempts = append(s.attempts, a)
	s.logger.Info("verification attempt",
		"attempt", a.Index, "max", s.maxAttempts(),
		"candidate", a.Candidate, "outcome", string(a.Outcome))
	return ok, nil
}

// confirm waits for a verdict after a submission: the error indicator means
// rejection, the success marker means acceptance. No verdict before the
// timeout counts as rejection.
func (s *session) confirm(ctx context.Context, success browser.Locator, timeout time.Duration) (bool, error) {
	var accepted bool
	_, err := s.poll(ctx, timeout, func() (bool, error) {
		rejected, err := s.driver.Visible(ctx, s.sel.ErrorIndicator)
		if err != nil || rejected {
			return rejected, err
		}
		accepted, err = s.driver.Visible(ctx, success)
		return accepted, err
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// freshChallenge clears any error dialog and replaces the challenge image
// so a rejected answer is never resubmitted against the same image.
func (s *session) freshChallenge(ctx context.Context) error {
	s.dismissDialog(ctx)

	if shown, _ := s.driver.Visible(ctx, s.sel.ChallengeImage); !shown {
		// The portal dropped back to its home page; reload for a new challenge.
		return s.loadHome(ctx)
	}
	if err := s.driver.Click(ctx, s.sel.ChallengeRefresh); err != nil {
		return fmt.Errorf("%w: challenge refresh: %v", types.ErrFormFieldMissing, err)
	}
	return s.settle(ctx)
}

func (s *session) dismissDialog(ctx context.Context) {
	if shown, _ := s.driver.Visible(ctx, s.sel.DialogClose); !shown {
		return
	}
	if err := s.driver.Click(ctx, s.sel.DialogClose); err != nil {
		s.logger.Debug("dismissing dialog", "error", err)
		return
	}
	_ = s.settle(ctx)
}

// submitSearch submits the filled form. It reports false when the portal
// re-challenges or no results table appears in time.
func (s *session) submitSearch(ctx context.Context) (bool, string, error) {
	if err := s.driver.Click(ctx, s.sel.Submit); err != nil {
		return false, "", fmt.Errorf("%w: search button: %v", types.ErrFormFieldMissing, err)
	}
	ok, err := s.confirm(ctx, s.sel.Results, s.cfg.ElementTimeout)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, "search rejected, re-verifying", nil
	}
	return true, "", nil
}

// poll calls cond every PollInterval until it returns true or timeout
// elapses. It reports whether cond succeeded.
func (s *session) poll(ctx context.Context, timeout time.Duration, cond func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := sleep(ctx, s.cfg.PollInterval); err != nil {
			return false, err
		}
	}
}

func (s *session) settle(ctx context.Context) error {
	return sleep(ctx, s.cfg.SettleDelay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsFatal reports whether err ended a session.
func IsFatal(err error) bool {
	var se *types.StageError
	return errors.As(err, &se)
}
