package display

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorPrimary = lipgloss.Color("#00D4FF") // Cyan
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Yellow/Orange
	colorError   = lipgloss.Color("#EF4444") // Red
	colorMuted   = lipgloss.Color("#6B7280") // Gray
)

// Banner and section styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	taglineStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

// Severity styles
var (
	severityHighStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorError)

	severityMediumStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorWarning)

	severityLowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorSuccess)
)

// Validation styles
var (
	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning)

	issueStyle = lipgloss.NewStyle().
			Foreground(colorWarning)
)
