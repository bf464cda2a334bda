package locator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ormasoftchile/lazylink/pkg/macro"
	"github.com/ormasoftchile/lazylink/pkg/providers"
)

// Element is a handle over one locator.
type Element struct {
	root    *Map
	name    string
	path    string
	locator string
}

// Value enters the joined values into the field.
func (e *Element) Value(ctx context.Context, values ...string) *Map {
	return e.play(ctx, macro.Join(values, ""))
}

// SelectByIndex selects options by their 1-based index.
func (e *Element) SelectByIndex(ctx context.Context, indexes ...int) *Map {
	return e.play(ctx, macro.JoinInts(indexes, macro.PrefixIndex))
}

// SelectByIndexOrLast selects index, skipping a zero index and an empty
// placeholder first option, and falls back to the last option when the
// index is out of range.
func (e *Element) SelectByIndexOrLast(ctx context.Context, index int) *Map {
	ref, err := e.Lookup(ctx)
	if err != nil {
		e.root.player.ReportError(fmt.Sprintf("select %s: %v", e.path, err))
		return e.root
	}
	return e.play(ctx, macro.JoinInts([]int{ApplicableIndex(ref.Options, index)}, macro.PrefixIndex))
}

// SelectByCode selects options by value.
func (e *Element) SelectByCode(ctx context.Context, codes ...string) *Map {
	return e.play(ctx, macro.Join(codes, macro.PrefixCode))
}

// SelectByText selects options by their visible text.
func (e *Element) SelectByText(ctx context.Context, texts ...string) *Map {
	return e.play(ctx, macro.Join(texts, macro.PrefixText))
}

// Click clicks the element. With an index, the index replaces the {{index}}
// placeholder when the locator has one and is appended otherwise.
func (e *Element) Click(ctx context.Context, index ...int) *Map {
	e.root.player.Debugf("element %s", e.path)
	switch {
	case len(index) == 0:
		e.root.player.PlayMacro(ctx, e.locator)
	case macro.HasIndexPlaceholder(e.locator):
		e.root.player.PlayMacro(ctx, macro.FillIndex(e.locator, strconv.Itoa(index[0])))
	default:
		e.root.player.PlayMacroValue(ctx, e.locator, strconv.Itoa(index[0]))
	}
	return e.root
}

// SaveToVar captures the element's current value into the named variable.
// The engine cannot carry SET/EXTRACT across separately played lines, so
// the capture is performed by the execution loop before dispatch.
func (e *Element) SaveToVar(ctx context.Context, name string) *Map {
	if name == "" {
		e.root.player.ReportError(fmt.Sprintf("couldn't save variable: no name given for %s", e.path))
		return e.root
	}
	e.root.player.Debugf("element %s", e.path)
	e.root.player.PlayMacro(ctx, macro.SaveLine(e.locator, name))
	return e.root
}

// ValueFromVar enters the value previously saved under name.
func (e *Element) ValueFromVar(ctx context.Context, name string) *Map {
	if name == "" {
		e.root.player.ReportError(fmt.Sprintf("couldn't get variable: no name given for %s", e.path))
		return e.root
	}
	e.root.player.Debugf("element %s", e.path)
	e.root.player.PlayMacro(ctx, macro.ValueLine(e.locator, name))
	return e.root
}

func (e *Element) play(ctx context.Context, value string) *Map {
	e.root.player.Debugf("element %s", e.path)
	e.root.player.PlayMacroValue(ctx, e.locator, value)
	return e.root
}

// Macro returns the locator string.
func (e *Element) Macro() string { return e.locator }

// Name returns the element's key.
func (e *Element) Name() string { return e.name }

// Path returns the element's dotted path from the root.
func (e *Element) Path() string { return e.path }

// ID returns the element id embedded in the locator, or "".
func (e *Element) ID() string { return macro.ElementID(e.locator) }

// Lookup reads the element from the page.
func (e *Element) Lookup(ctx context.Context) (*providers.ElementRef, error) {
	id := e.ID()
	if id == "" {
		return nil, fmt.Errorf("%s: locator has no ATTR=ID", e.path)
	}
	if e.root.page == nil {
		return nil, fmt.Errorf("%s: no page attached", e.path)
	}
	ref, err := e.root.page.ElementByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.path, err)
	}
	if ref == nil {
		return nil, fmt.Errorf("%s: element %q not found", e.path, id)
	}
	return ref, nil
}

// Exists reports whether the element is present on the page.
func (e *Element) Exists(ctx context.Context) bool {
	_, err := e.Lookup(ctx)
	return err == nil
}

// SelectedIndex returns the selected option index.
func (e *Element) SelectedIndex(ctx context.Context) (int, error) {
	ref, err := e.Lookup(ctx)
	if err != nil {
		return -1, err
	}
	return ref.SelectedIndex, nil
}

// SelectedCode returns the value of the selected option.
func (e *Element) SelectedCode(ctx context.Context) (string, error) {
	opt, err := e.selected(ctx)
	return opt.Value, err
}

// SelectedText returns the text of the selected option.
func (e *Element) SelectedText(ctx context.Context) (string, error) {
	opt, err := e.selected(ctx)
	return opt.Text, err
}

func (e *Element) selected(ctx context.Context) (providers.Option, error) {
	ref, err := e.Lookup(ctx)
	if err != nil {
		return providers.Option{}, err
	}
	opt, ok := ref.SelectedOption()
	if !ok {
		return providers.Option{}, fmt.Errorf("%s: no option selected", e.path)
	}
	return opt, nil
}

// ApplicableIndex adjusts a requested option index: 0 and an empty first
// option (a "please choose" placeholder) each add one, then the result is
// clamped to the number of options.
func ApplicableIndex(options []providers.Option, index int) int {
	if index == 0 {
		index++
	}
	if len(options) > 0 && options[0].Value == "" {
		index++
	}
	if index <= len(options) {
		return index
	}
	return len(options)
}
