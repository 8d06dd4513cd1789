// Package ui styles the operator-facing prompts and diagnostics with lipgloss.
//
// A [Palette] is bound to the writer it styles for, so colors only appear on terminals.
package ui
