// Package ui provides terminal output helpers for keyfleet's CLI.
//
// Styles use ANSI colors through Lip Gloss. ConfigureColors selects the
// profile once at startup, honoring --no-color and NO_COLOR.
//
// # Symbols
//
//	SymbolSuccess  (checkmark) - host or transfer succeeded
//	SymbolFail     (X)         - host or transfer failed
//	SymbolWarning  (triangle)  - notice that doesn't fail the run
//	SymbolSkipped  (slashed)   - skipped step
//
// # Spinner
//
// Spinner covers short local steps such as key generation:
//
//	s := ui.NewSpinner("Generating key", os.Stdout, isTTY)
//	s.Start()
//	// ... do work ...
//	s.Success() // or s.Fail() or s.Skip()
//
// Host progress is never drawn with a spinner: it is streamed line by line
// so that concurrent hosts can't garble each other's output.
//
// # Summaries
//
// SummaryRenderer renders the end-of-run result: a success line, skip
// notices, and a numbered list of failures in a fixed order.
package ui
