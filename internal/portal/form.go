// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/judgment-engine/internal/browser"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// formDateLayout is the portal's date field format.
const formDateLayout = "02-01-2006"

// applyCriteria fills the advanced search form. Bench, case type, and
// disposal options load after the court is chosen, so each select is
// waited on before it is read.
func (s *session) applyCriteria(ctx context.Context) error {
	c := s.criteria

	courts, err := s.options(ctx, s.sel.Court, "court")
	if err != nil {
		return err
	}
	picked := matchCourts(courts, c.Courts)
	if len(picked) == 0 {
		return fmt.Errorf("%w: no court option matches %q", types.ErrFormFieldMissing, c.Courts)
	}
	if err := s.selectOptions(ctx, s.sel.Court, "court", picked); err != nil {
		return err
	}

	benches, err := s.options(ctx, s.sel.Bench, "bench")
	if err != nil {
		return err
	}
	if err := s.applyMatcher(ctx, s.sel.Bench, "bench", benches, c.BenchMatcher(), true); err != nil {
		return err
	}

	caseTypes, err := c.CaseTypeMatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidCriteria, err)
	}
	if !caseTypes.All() {
		opts, err := s.options(ctx, s.sel.CaseType, "case type")
		if err != nil {
			return err
		}
		if err := s.applyMatcher(ctx, s.sel.CaseType, "case type", opts, caseTypes, false); err != nil {
			return err
		}
	}

	disposals, err := c.DisposalMatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidCriteria, err)
	}
	if !disposals.All() {
		opts, err := s.options(ctx, s.sel.Disposal, "disposal nature")
		if err != nil {
			return err
		}
		if err := s.applyMatcher(ctx, s.sel.Disposal, "disposal nature", opts, disposals, false); err != nil {
			return err
		}
	}

	if err := s.typeInto(ctx, s.sel.FromDate, "from date", c.From.Format(formDateLayout)); err != nil {
		return err
	}
	return s.typeInto(ctx, s.sel.ToDate, "to date", c.To.Format(formDateLayout))
}

// applyMatcher selects the options m matches. With allowAll, an
// unrestricted matcher selects every option; a restricted matcher that
// selects nothing is an error so the search never silently widens.
func (s *session) applyMatcher(ctx context.Context, loc browser.Locator, field string, opts []string, m types.Matcher, allowAll bool) error {
	if m.All() && !allowAll {
		return nil
	}
	picked := m.Filter(opts)
	if len(picked) == 0 {
		return fmt.Errorf("%w: no %s option matches the criteria", types.ErrFormFieldMissing, field)
	}
	return s.selectOptions(ctx, loc, field, picked)
}

// options waits for a select field and its options to load, and returns
// the option labels without placeholders.
func (s *session) options(ctx context.Context, loc browser.Locator, field string) ([]string, error) {
	if err := s.driver.WaitVisible(ctx, loc, s.cfg.ElementTimeout); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrFormFieldMissing, field, err)
	}
	var opts []string
	ok, err := s.poll(ctx, s.cfg.ElementTimeout, func() (bool, error) {
		all, err := s.driver.OptionTexts(ctx, loc)
		if err != nil {
			return false, err
		}
		opts = realOptions(all)
		return len(opts) > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s options: %v", types.ErrFormFieldMissing, field, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s has no options", types.ErrFormFieldMissing, field)
	}
	return opts, nil
}

func (s *session) selectOptions(ctx context.Context, loc browser.Locator, field string, picked []string) error {
	if err := s.driver.SelectOptions(ctx, loc, picked); err != nil {
		return fmt.Errorf("%w: selecting %s: %v", types.ErrFormFieldMissing, field, err)
	}
	s.logger.Debug("form field set", "field", field, "selected", len(picked))
	return nil
}

func (s *session) typeInto(ctx context.Context, loc browser.Locator, field, text string) error {
	if err := s.driver.Clear(ctx, loc); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrFormFieldMissing, field, err)
	}
	if err := s.driver.SendKeys(ctx, loc, text); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrFormFieldMissing, field, err)
	}
	return nil
}

// matchCourts returns the options naming one of the requested courts. A
// court matches an option equal to it or containing it, ignoring case, so
// "Bombay" selects "High Court of Bombay".
func matchCourts(options, courts []string) []string {
	var out []string
	for _, o := range options {
		lo := strings.ToLower(o)
		for _, c := range courts {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != "" && strings.Contains(lo, c) {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

// realOptions drops blank and "--Select--" style placeholder options.
func realOptions(opts []string) []string {
	var out []string
	for _, o := range opts {
		t := strings.TrimSpace(o)
		if t == "" || strings.HasPrefix(t, "--") || strings.EqualFold(t, "select") {
			continue
		}
		out = append(out, o)
	}
	return out
}
