// Package browser drives a real browser page through playwright. Engine
// executes the subset of macro commands a harness run needs and reads
// element state back from the DOM.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/playwright-community/playwright-go"

	"github.com/ormasoftchile/lazylink/pkg/macro"
	"github.com/ormasoftchile/lazylink/pkg/providers"
)

// StatusElementNotFound is returned when a TAG target does not appear
// within the timeout.
const StatusElementNotFound = -921

// Options configures Launch.
type Options struct {
	Headless bool
	Timeout  time.Duration // per command; 30s when zero
	StartURL string
}

// Engine implements providers.Executor and providers.Page on one browser
// context. The newest page opened by the context becomes current.
type Engine struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout float64 // milliseconds

	mu    sync.Mutex
	page  playwright.Page
	pages []playwright.Page

	// Pause blocks until the user resumes. A non-nil error aborts the
	// run. Without it PAUSE only logs.
	Pause func(ctx context.Context) error

	log     *log.Logger
	lastErr string
}

// Launch starts playwright and opens a Chromium page.
func Launch(opts Options, logger *log.Logger) (*Engine, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--disable-popup-blocking", "--disable-dev-shm-usage"},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: 1280, Height: 720},
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create page: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	e := &Engine{
		pw:      pw,
		browser: browser,
		context: bctx,
		timeout: float64(timeout.Milliseconds()),
		page:    page,
		pages:   []playwright.Page{page},
		log:     logger,
	}
	e.watch(page)
	bctx.OnPage(func(p playwright.Page) {
		e.mu.Lock()
		e.pages = append(e.pages, p)
		e.page = p
		e.mu.Unlock()
		e.watch(p)
	})

	if opts.StartURL != "" {
		if code := e.Execute(context.Background(), "URL GOTO="+opts.StartURL); code != macro.StatusOK {
			e.Close()
			return nil, fmt.Errorf("open start page: %s", e.lastErr)
		}
	}
	return e, nil
}

// watch accepts dialogs and falls back to the first page on close.
func (e *Engine) watch(p playwright.Page) {
	p.OnDialog(func(d playwright.Dialog) {
		d.Accept()
	})
	p.OnClose(func(closed playwright.Page) {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, q := range e.pages {
			if q == closed {
				e.pages = append(e.pages[:i], e.pages[i+1:]...)
				break
			}
		}
		if e.page == closed && len(e.pages) > 0 {
			e.page = e.pages[0]
		}
	})
}

func (e *Engine) current() playwright.Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.page
}

// LastErrorText returns the error of the last failed command.
func (e *Engine) LastErrorText() string { return e.lastErr }

// Execute runs one macro line.
func (e *Engine) Execute(ctx context.Context, line string) int {
	e.lastErr = ""
	cmd, err := ParseCommand(line)
	if err != nil {
		return e.fail(providers.StatusExecFailure, err)
	}
	e.log.Debug("browser command", "name", cmd.Name)

	switch cmd.Name {
	case "URL":
		url, ok := cmd.Params["GOTO"]
		if !ok {
			return e.fail(providers.StatusExecFailure, fmt.Errorf("URL: missing GOTO"))
		}
		return e.navigate(func(p playwright.Page) error {
			_, err := p.Goto(url, playwright.PageGotoOptions{
				WaitUntil: playwright.WaitUntilStateCommit,
				Timeout:   playwright.Float(e.timeout),
			})
			return err
		})
	case "REFRESH":
		return e.navigate(func(p playwright.Page) error {
			_, err := p.Reload(playwright.PageReloadOptions{
				WaitUntil: playwright.WaitUntilStateCommit,
				Timeout:   playwright.Float(e.timeout),
			})
			return err
		})
	case "BACK":
		return e.navigate(func(p playwright.Page) error {
			_, err := p.GoBack(playwright.PageGoBackOptions{
				WaitUntil: playwright.WaitUntilStateCommit,
				Timeout:   playwright.Float(e.timeout),
			})
			return err
		})
	case "WAIT":
		return e.wait(ctx, cmd)
	case "PAUSE":
		if e.Pause == nil {
			e.log.Info("pause requested; no prompt attached")
			return macro.StatusOK
		}
		if err := e.Pause(ctx); err != nil {
			e.lastErr = err.Error()
			return macro.StatusUserAbort
		}
		return macro.StatusOK
	case "TAG":
		return e.tag(cmd)
	default:
		return e.fail(providers.StatusExecFailure, fmt.Errorf("unsupported command %s", cmd.Name))
	}
}

func (e *Engine) fail(code int, err error) int {
	e.lastErr = err.Error()
	return code
}

// navigate runs a navigation, then waits for the load event. A navigation
// timeout maps to StatusNavigationTimeout, a load timeout to
// StatusPageTimeout.
func (e *Engine) navigate(fn func(p playwright.Page) error) int {
	p := e.current()
	if err := fn(p); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return e.fail(macro.StatusNavigationTimeout, err)
		}
		return e.fail(providers.StatusExecFailure, err)
	}
	err := p.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(e.timeout),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return e.fail(macro.StatusPageTimeout, err)
		}
		return e.fail(providers.StatusExecFailure, err)
	}
	return macro.StatusOK
}

func (e *Engine) wait(ctx context.Context, cmd Command) int {
	seconds, err := strconv.ParseFloat(cmd.Params["SECONDS"], 64)
	if err != nil || seconds < 0 {
		return e.fail(providers.StatusExecFailure, fmt.Errorf("WAIT: invalid SECONDS %q", cmd.Params["SECONDS"]))
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return macro.StatusOK
	case <-ctx.Done():
		return e.fail(macro.StatusUserAbort, ctx.Err())
	}
}

func (e *Engine) locate(t Target) playwright.Locator {
	p := e.current()
	var loc playwright.Locator
	if t.ID != "" {
		loc = p.Locator(fmt.Sprintf("[id=%q]", t.ID))
	} else {
		loc = p.GetByText(t.Text, playwright.PageGetByTextOptions{Exact: playwright.Bool(true)})
	}
	if t.Pos > 0 {
		return loc.Nth(t.Pos - 1)
	}
	return loc.First()
}

func (e *Engine) tag(cmd Command) int {
	target, err := cmd.Target()
	if err != nil {
		return e.fail(providers.StatusExecFailure, err)
	}
	loc := e.locate(target)
	timeout := playwright.Float(e.timeout)

	content := cmd.Content()
	switch content.Kind {
	case ContentNone:
		err = loc.Click(playwright.LocatorClickOptions{Timeout: timeout})
	case ContentFill:
		err = loc.Fill(content.Values[0], playwright.LocatorFillOptions{Timeout: timeout})
	case ContentIndex:
		indexes := make([]int, 0, len(content.Values))
		for _, v := range content.Values {
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n < 1 {
				return e.fail(providers.StatusExecFailure, fmt.Errorf("TAG: invalid index %q", v))
			}
			indexes = append(indexes, n-1)
		}
		_, err = loc.SelectOption(playwright.SelectOptionValues{Indexes: &indexes},
			playwright.LocatorSelectOptionOptions{Timeout: timeout})
	case ContentCode:
		_, err = loc.SelectOption(playwright.SelectOptionValues{Values: &content.Values},
			playwright.LocatorSelectOptionOptions{Timeout: timeout})
	case ContentText:
		_, err = loc.SelectOption(playwright.SelectOptionValues{Labels: &content.Values},
			playwright.LocatorSelectOptionOptions{Timeout: timeout})
	}
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return e.fail(StatusElementNotFound, fmt.Errorf("element %s not found: %w", cmd.Params["ATTR"], err))
		}
		return e.fail(providers.StatusExecFailure, err)
	}
	return macro.StatusOK
}

const elementScript = `(id) => {
	const el = document.getElementById(id);
	if (!el) return null;
	const out = {
		id: el.id,
		value: el.value === undefined ? "" : String(el.value),
		text: el.innerHTML,
		selectedIndex: el.selectedIndex === undefined ? -1 : el.selectedIndex,
		options: [],
	};
	if (el.options) {
		for (const o of el.options) out.options.push({value: o.value, text: o.text});
	}
	return out;
}`

// ElementByID snapshots an element of the current page.
func (e *Engine) ElementByID(ctx context.Context, id string) (*providers.ElementRef, error) {
	result, err := e.current().Evaluate(elementScript, id)
	if err != nil {
		return nil, fmt.Errorf("read element %q: %w", id, err)
	}
	m, ok := result.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	return toElementRef(m), nil
}

func toElementRef(m map[string]interface{}) *providers.ElementRef {
	ref := &providers.ElementRef{
		ID:            getString(m, "id"),
		Value:         getString(m, "value"),
		Text:          getString(m, "text"),
		SelectedIndex: getInt(m, "selectedIndex"),
	}
	if opts, ok := m["options"].([]interface{}); ok {
		for _, o := range opts {
			om, ok := o.(map[string]interface{})
			if !ok {
				continue
			}
			ref.Options = append(ref.Options, providers.Option{Value: getString(om, "value"), Text: getString(om, "text")})
		}
	}
	return ref
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return -1
}

// Close shuts down the browser and playwright.
func (e *Engine) Close() error {
	var errs []error
	if err := e.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close context: %w", err))
	}
	if err := e.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := e.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}
