package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/logger"
)

// InteractionSelectors are the click candidates, tried in order.
var InteractionSelectors = []string{
	"button",
	"a",
	"[role=button]",
	"[type=submit]",
	"[onclick]",
	"[data-testid*=button]",
	"input[type=submit]",
	"input[type=button]",
	".btn",
	".button",
	".menu-trigger",
	".nav-item",
	`[tabindex]:not([tabindex="-1"])`,
	"[data-action]",
	"[data-toggle]",
}

// DynamicSelectors mark elements that load content on demand.
var DynamicSelectors = []string{
	"[data-loading]",
	"[data-src]",
	"[data-url]",
	"[data-api]",
	".load-more",
	".infinite-scroll",
	"[id*=load]",
	"[class*=load]",
}

const (
	formFieldSelector  = "input, textarea, select"
	formSubmitSelector = "[type=submit], button:not([type=button])"
)

// fieldValues maps input types to synthetic values.
var fieldValues = map[string]string{
	"text":     "test",
	"email":    "test@example.com",
	"password": "Test123!",
	"search":   "test search",
	"tel":      "1234567890",
	"number":   "42",
	"url":      "https://example.com",
}

// skippedFieldTypes are never filled.
var skippedFieldTypes = map[string]bool{
	"hidden":   true,
	"submit":   true,
	"button":   true,
	"reset":    true,
	"image":    true,
	"file":     true,
	"checkbox": true,
	"radio":    true,
}

// ExploreConfig controls the exploration phase.
type ExploreConfig struct {
	Scroll         bool          `json:"scroll" yaml:"scroll"`
	ScrollStep     float64       `json:"scroll_step" yaml:"scroll_step"`
	ScrollInterval time.Duration `json:"scroll_interval" yaml:"scroll_interval"`
	ScrollMaxSteps int           `json:"scroll_max_steps" yaml:"scroll_max_steps"`

	Click                bool          `json:"click" yaml:"click"`
	ClickTimeout         time.Duration `json:"click_timeout" yaml:"click_timeout"`
	ClickInterval        time.Duration `json:"click_interval" yaml:"click_interval"`
	MaxClicksPerSelector int           `json:"max_clicks_per_selector" yaml:"max_clicks_per_selector"`

	Forms     bool          `json:"forms" yaml:"forms"`
	FormPause time.Duration `json:"form_pause" yaml:"form_pause"`

	Dynamic    bool `json:"dynamic" yaml:"dynamic"`
	SourceScan bool `json:"source_scan" yaml:"source_scan"`
}

// DefaultExploreConfig enables every step.
func DefaultExploreConfig() ExploreConfig {
	return ExploreConfig{
		Scroll:               true,
		ScrollStep:           100,
		ScrollInterval:       100 * time.Millisecond,
		ScrollMaxSteps:       500,
		Click:                true,
		ClickTimeout:         time.Second,
		ClickInterval:        500 * time.Millisecond,
		MaxClicksPerSelector: 20,
		Forms:                true,
		FormPause:            time.Second,
		Dynamic:              true,
		SourceScan:           true,
	}
}

// explore runs every enabled step. A failing step is logged and the next one
// runs.
func (s *Session) explore(ctx context.Context, page Page) {
	ec := s.cfg.Explore
	steps := []struct {
		name    string
		enabled bool
		run     func(context.Context, Page) error
	}{
		{"scroll", ec.Scroll, s.autoScroll},
		{"click", ec.Click, s.clickAll},
		{"dynamic", ec.Dynamic, s.triggerDynamic},
		{"forms", ec.Forms, s.submitForms},
		{"scan", ec.SourceScan, s.scanSource},
	}

	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if ctx.Err() != nil {
			s.log.Debug("Context done, skipping remaining exploration")
			return
		}
		if err := s.guard(step.name, func() error { return step.run(ctx, page) }); err != nil {
			s.log.Event(logger.WarnLevel).Err(err).Str("step", step.name).Msg("Exploration step failed")
		}
	}
}

// guard runs fn and converts a panic into an error.
func (s *Session) guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	return fn()
}

// autoScroll scrolls to the bottom in fixed steps, bounded by ScrollMaxSteps.
func (s *Session) autoScroll(ctx context.Context, page Page) error {
	ec := s.cfg.Explore
	for i := 0; i < ec.ScrollMaxSteps; i++ {
		bottom, height, err := page.ScrollBy(ctx, ec.ScrollStep)
		if err != nil {
			return err
		}
		s.metrics.RecordScrollStep()
		if bottom >= height {
			return nil
		}
		if err := s.sleep(ctx, ec.ScrollInterval); err != nil {
			return err
		}
	}
	return nil
}

// clickAll clicks visible, enabled candidates of each selector group.
func (s *Session) clickAll(ctx context.Context, page Page) error {
	ec := s.cfg.Explore
	for _, sel := range InteractionSelectors {
		els, err := page.Elements(ctx, sel)
		if err != nil {
			s.log.Event(logger.DebugLevel).Err(err).Str("selector", sel).Msg("Selector lookup failed")
			continue
		}

		clicked := 0
		for _, el := range els {
			if ec.MaxClicksPerSelector > 0 && clicked >= ec.MaxClicksPerSelector {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := s.guard("click", func() error {
				if !el.Visible(ctx) || !el.Enabled(ctx) {
					return errSkipped
				}
				if err := s.pacer.Wait(ctx); err != nil {
					return err
				}
				return el.Click(ctx, ec.ClickTimeout)
			})
			if errors.Is(err, errSkipped) {
				continue
			}
			s.metrics.RecordClick(err == nil)
			clicked++
		}
	}
	return nil
}

var errSkipped = errors.New("element skipped")

// triggerDynamic hovers lazy-load markers and fires the window events lazy
// loaders listen to.
func (s *Session) triggerDynamic(ctx context.Context, page Page) error {
	for _, sel := range DynamicSelectors {
		els, err := page.Elements(ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := s.guard("hover", func() error {
				if !el.Visible(ctx) {
					return nil
				}
				return el.Hover(ctx)
			})
			if err != nil {
				s.log.Event(logger.DebugLevel).Err(err).Str("selector", sel).Msg("Hover failed")
			}
		}
	}
	return page.TriggerLazyLoad(ctx)
}

// submitForms fills every form with synthetic values and submits it.
func (s *Session) submitForms(ctx context.Context, page Page) error {
	forms, err := page.Elements(ctx, "form")
	if err != nil {
		return err
	}

	for i, form := range forms {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.guard("form", func() error {
			return s.submitForm(ctx, form)
		})
		if err != nil {
			s.log.Event(logger.DebugLevel).Err(err).Int("form", i).Msg("Form submission failed")
		}
	}
	return nil
}

func (s *Session) submitForm(ctx context.Context, form Element) error {
	fields, err := form.Elements(ctx, formFieldSelector)
	if err != nil {
		return err
	}
	for i, field := range fields {
		if !field.Visible(ctx) || !field.Enabled(ctx) {
			continue
		}
		err := s.guard("field", func() error {
			if field.Tag(ctx) == "select" {
				return field.SelectFirst(ctx)
			}
			typ, _ := field.Attribute(ctx, "type")
			name, _ := field.Attribute(ctx, "name")
			id, _ := field.Attribute(ctx, "id")
			value, ok := FieldValue(typ, name, id)
			if !ok {
				return nil
			}
			return field.Fill(ctx, value)
		})
		if err != nil {
			s.log.Event(logger.DebugLevel).Err(err).Int("field", i).Msg("Field fill failed")
		}
	}

	buttons, err := form.Elements(ctx, formSubmitSelector)
	if err != nil {
		return err
	}
	for _, b := range buttons {
		if !b.Visible(ctx) {
			continue
		}
		if err := b.Click(ctx, s.cfg.Explore.ClickTimeout); err != nil {
			return err
		}
		s.metrics.RecordFormSubmitted()
		return s.sleep(ctx, s.cfg.Explore.FormPause)
	}
	return nil
}

// FieldValue picks the synthetic value for a form field. Email and password
// fields are recognised by name or id as well as by type. ok is false for
// fields that should not be filled.
func FieldValue(typ, name, id string) (value string, ok bool) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		typ = "text"
	}
	if skippedFieldTypes[typ] {
		return "", false
	}

	hint := strings.ToLower(name + " " + id)
	switch {
	case strings.Contains(hint, "email"):
		return fieldValues["email"], true
	case strings.Contains(hint, "pass"):
		return fieldValues["password"], true
	}

	if v, found := fieldValues[typ]; found {
		return v, true
	}
	return fieldValues["text"], true
}

// scanSource records endpoint-like strings embedded in the page source.
func (s *Session) scanSource(ctx context.Context, page Page) error {
	html, err := page.HTML(ctx)
	if err != nil {
		return err
	}
	hits, err := ScanSource(html, s.baseURL(page))
	if err != nil {
		return err
	}
	s.metrics.RecordStaticCandidates(len(hits))

	added := 0
	for _, hit := range hits {
		if s.sink.RecordStatic(hit) {
			added++
		}
	}
	s.log.Event(logger.DebugLevel).Int("candidates", len(hits)).Int("added", added).Msg("Source scan complete")
	return nil
}
