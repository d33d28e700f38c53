package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Host or transfer succeeded
	SymbolFail     = "✗" // Host or transfer failed
	SymbolPending  = "○" // Not yet started
	SymbolProgress = "◐" // In progress
	SymbolComplete = "●" // Done (spinner final state)
	SymbolSkipped  = "⊘" // Skipped
	SymbolWarning  = "⚠" // Notice that doesn't fail the run
)
