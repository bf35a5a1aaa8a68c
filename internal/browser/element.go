package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/atharvkhisti/WebReckon/internal/session"
)

// element adapts a rod element to session.Element. Failures on detached or
// stale nodes read as absent, hidden or disabled.
type element struct {
	el *rod.Element
}

func wrapElements(els rod.Elements) []session.Element {
	out := make([]session.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el})
	}
	return out
}

func (e *element) Tag(ctx context.Context) string {
	res, err := e.el.Context(ctx).Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e *element) Visible(ctx context.Context) bool {
	ok, err := e.el.Context(ctx).Visible()
	return err == nil && ok
}

func (e *element) Enabled(ctx context.Context) bool {
	res, err := e.el.Context(ctx).Eval(`() => !this.disabled`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (e *element) Click(ctx context.Context, timeout time.Duration) error {
	return e.el.Context(ctx).Timeout(timeout).Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) Hover(ctx context.Context) error {
	return e.el.Context(ctx).Hover()
}

func (e *element) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

// SelectFirst picks the first non-placeholder option of a select element.
func (e *element) SelectFirst(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => {
		const opts = Array.from(this.options || []).filter(o => o.value !== '');
		if (opts.length === 0) return false;
		this.value = opts[0].value;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	}`)
	return err
}

func (e *element) Elements(ctx context.Context, selector string) ([]session.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}
