package views

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// Authenticator signs the user in or up
type Authenticator interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password string) error
}

// AuthMode selects between the sign in and sign up forms
type AuthMode int

const (
	ModeLogin AuthMode = iota
	ModeRegister
)

type authResultMsg struct {
	err error
}

// AuthView is the login and register screen
type AuthView struct {
	auth   Authenticator
	mode   AuthMode
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	email    textinput.Model
	password textinput.Model
	focusIdx int // 0=email, 1=password, 2=submit

	submitting bool
	err        string
}

// NewAuthView creates the sign in (or sign up) screen
func NewAuthView(auth Authenticator, mode AuthMode) *AuthView {
	email := textinput.New()
	email.Placeholder = "Email address"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "Password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return &AuthView{
		auth:     auth,
		mode:     mode,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		email:    email,
		password: password,
	}
}

// Mode returns which form is shown
func (v *AuthView) Mode() AuthMode { return v.mode }

// Error returns the message currently shown under the form
func (v *AuthView) Error() string { return v.err }

func (v *AuthView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *AuthView) submit() tea.Cmd {
	if v.submitting {
		return nil
	}
	v.submitting = true
	v.err = ""
	email, password, mode := v.email.Value(), v.password.Value(), v.mode
	return func() tea.Msg {
		var err error
		if mode == ModeRegister {
			err = v.auth.Register(context.Background(), email, password)
		} else {
			err = v.auth.Login(context.Background(), email, password)
		}
		return authResultMsg{err: err}
	}
}

func (v *AuthView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case authResultMsg:
		v.submitting = false
		if msg.err != nil {
			v.err = api.Message(msg.err)
			v.password.Reset()
			v.focusIdx = 1
			v.updateFocus()
			return v, nil
		}
		// the session subscription moves the app on
		return v, nil

	case tea.KeyMsg:
		switch {
		case msg.String() == "ctrl+c":
			return v, tea.Quit
		case key.Matches(msg, v.keys.SwitchAuthTab):
			if v.mode == ModeLogin {
				return v, navigate("/register")
			}
			return v, navigate("/login")
		case key.Matches(msg, v.keys.Tab), msg.String() == "down":
			v.focusIdx = (v.focusIdx + 1) % 3
			v.updateFocus()
			return v, nil
		case key.Matches(msg, v.keys.ShiftTab), msg.String() == "up":
			v.focusIdx = (v.focusIdx + 2) % 3
			v.updateFocus()
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			if v.focusIdx < 2 {
				v.focusIdx++
				v.updateFocus()
				return v, nil
			}
			return v, v.submit()
		}
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.email, cmd = v.email.Update(msg)
	case 1:
		v.password, cmd = v.password.Update(msg)
	}
	return v, cmd
}

func (v *AuthView) updateFocus() {
	v.email.Blur()
	v.password.Blur()
	switch v.focusIdx {
	case 0:
		v.email.Focus()
	case 1:
		v.password.Focus()
	}
}

// View renders the view
func (v *AuthView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	heading, subtitle, button := "Welcome Back!", "Sign in to your account.", " Sign In "
	switchHint := "No account? ctrl+r to sign up"
	if v.mode == ModeRegister {
		heading, subtitle, button = "Create Account", "Sign up to start tracking projects.", " Sign Up "
		switchHint = "Have an account? ctrl+r to sign in"
	}
	if v.submitting {
		button = " Working... "
	}

	emailStyle, passStyle, btnStyle := s.Input, s.Input, s.Button
	switch v.focusIdx {
	case 0:
		emailStyle = s.InputFocused
	case 1:
		passStyle = s.InputFocused
	case 2:
		btnStyle = s.ButtonFocused
	}

	inputWidth := clamp(contentWidth-6, 20, 50)

	rows := []string{
		s.Title.Render(heading),
		s.TitleMuted.Render(subtitle),
		"",
	}
	if v.err != "" {
		rows = append(rows, s.Error.Render(fmt.Sprintf("Error: %s", v.err)), "")
	}
	rows = append(rows,
		"Email:",
		emailStyle.Width(inputWidth).Render(v.email.View()),
		"",
		"Password:",
		passStyle.Width(inputWidth).Render(v.password.View()),
		"",
		btnStyle.Render(button),
		"",
		s.TitleMuted.Render("Tab: next • ↵: submit • "+switchHint),
	)

	form := lipgloss.JoinVertical(lipgloss.Left, rows...)
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}
