package views

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/viewmodel"
)

// Navigate asks the app to switch to the screen at Path
type Navigate struct {
	Path string
}

// LogoutRequested asks the app to end the session
type LogoutRequested struct{}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func navigate(path string) tea.Cmd {
	return func() tea.Msg { return Navigate{Path: path} }
}

// renderToast draws the toast line, or "" when nothing is showing
func renderToast(s *styles.Styles, t *viewmodel.Toast) string {
	if !t.Visible() {
		return ""
	}
	style := s.ToastSuccess
	if t.Kind == viewmodel.ToastError {
		style = s.ToastError
	}
	return style.Render(t.Message)
}

// withToast places the toast under content, keeping it inside the content width
func withToast(s *styles.Styles, t *viewmodel.Toast, content string) string {
	toast := renderToast(s, t)
	if toast == "" {
		return content
	}
	return lipgloss.JoinVertical(lipgloss.Left, content, "", toast)
}
