package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Navigate loads url in the session's page.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := s.Page.page.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// close releases the page, context and browser. Errors are ignored so
// cleanup always runs to completion.
func (s *Session) close() {
	s.Page.Close()
	_ = s.Context.Close()
	_ = s.Browser.Close()
}
