package views

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/viewmodel"
)

type projectItem struct {
	project models.Project
}

func (i projectItem) Title() string       { return i.project.Title }
func (i projectItem) Description() string { return i.project.Description }
func (i projectItem) FilterValue() string { return i.project.Title }

type projectDelegate struct {
	styles *styles.Styles
	width  int
}

func (d projectDelegate) Height() int                               { return 2 }
func (d projectDelegate) Spacing() int                              { return 1 }
func (d projectDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	p, ok := item.(projectItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	stats := fmt.Sprintf("%d/%d done", p.project.CompletedTasks, p.project.TotalTasks)
	desc := p.Description()
	if desc == "" {
		desc = stats
	} else {
		desc = desc + " • " + stats
	}

	fmt.Fprintf(w, "%s\n%s", titleStyle.Render(p.Title()), descStyle.Render(desc))
}

// ProjectListView lists the user's projects
type ProjectListView struct {
	vm       *viewmodel.Projects
	list     list.Model
	delegate *projectDelegate
	search   textinput.Model
	styles   *styles.Styles
	keys     keys.KeyMap
	email    string

	width  int
	height int

	searching bool
	creating  bool
	newName   textinput.Model
	newDesc   textinput.Model
	focusIdx  int // 0=name, 1=desc, 2=confirm

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// NewProjectListView creates the project list screen. email is shown in the
// title bar.
func NewProjectListView(vm *viewmodel.Projects, email string) *ProjectListView {
	s := styles.NewStyles()

	search := textinput.New()
	search.Placeholder = "Search projects..."
	search.CharLimit = 100

	newName := textinput.New()
	newName.Placeholder = "Project title"
	newName.CharLimit = 100

	newDesc := textinput.New()
	newDesc.Placeholder = "Project description (optional)"
	newDesc.CharLimit = 255

	delegate := &projectDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Projects"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &ProjectListView{
		vm:       vm,
		list:     l,
		delegate: delegate,
		search:   search,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		email:    email,
		newName:  newName,
		newDesc:  newDesc,
	}
}

func (v *ProjectListView) Init() tea.Cmd {
	return v.vm.Load()
}

// syncItems rebuilds the list from the filtered projects, keeping the cursor
// on the same project when it is still shown
func (v *ProjectListView) syncItems() {
	var selectedID int64
	if item, ok := v.list.SelectedItem().(projectItem); ok {
		selectedID = item.project.ID
	}

	filtered := v.vm.Filtered()
	items := make([]list.Item, len(filtered))
	cursor := 0
	for i, p := range filtered {
		items[i] = projectItem{project: p}
		if p.ID == selectedID {
			cursor = i
		}
	}
	v.list.SetItems(items)
	v.list.Select(cursor)
}

func (v *ProjectListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Use content width (capped at MaxWidth) for internal layout
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, max(msg.Height-10, 4))
		return v, nil

	case viewmodel.ProjectCreatedMsg:
		if msg.Err == nil {
			v.creating = false
			v.newName.Reset()
			v.newDesc.Reset()
		}
		cmd := v.vm.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if _, pending := v.vm.PendingDelete(); pending {
			return v.updateConfirmDelete(msg)
		}

		if v.creating {
			return v.updateCreating(msg)
		}

		if v.searching {
			return v.updateSearching(msg)
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			if v.vm.Search() != "" {
				v.search.Reset()
				v.vm.SetSearch("")
				v.syncItems()
			}
			return v, nil
		case key.Matches(msg, v.keys.New):
			v.creating = true
			v.focusIdx = 0
			v.newName.Reset()
			v.newDesc.Reset()
			v.updateFocus()
			return v, textinput.Blink
		case key.Matches(msg, v.keys.Search):
			v.searching = true
			v.search.Focus()
			return v, textinput.Blink
		case key.Matches(msg, v.keys.Refresh):
			return v, v.vm.Load()
		case key.Matches(msg, v.keys.Logout):
			return v, func() tea.Msg { return LogoutRequested{} }
		case key.Matches(msg, v.keys.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				return v, navigate(fmt.Sprintf("/projects/%d", item.project.ID))
			}
			return v, nil
		case key.Matches(msg, v.keys.Delete):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				v.vm.RequestDelete(item.project)
			}
			return v, nil
		}

		var cmd tea.Cmd
		v.list, cmd = v.list.Update(msg)
		return v, cmd
	}

	cmd := v.vm.Update(msg)
	v.syncItems()
	return v, cmd
}

func (v *ProjectListView) updateSearching(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.searching = false
		v.search.Blur()
		v.search.Reset()
		v.vm.SetSearch("")
		v.syncItems()
		return v, nil
	case key.Matches(msg, v.keys.Enter), key.Matches(msg, v.keys.Tab):
		v.searching = false
		v.search.Blur()
		return v, nil
	}

	var cmd tea.Cmd
	v.search, cmd = v.search.Update(msg)
	v.vm.SetSearch(v.search.Value())
	v.syncItems()
	return v, cmd
}

func (v *ProjectListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return v, v.vm.ConfirmDelete()
	case "n", "N", "esc":
		v.vm.CancelDelete()
		return v, nil
	}
	return v, nil
}

func (v *ProjectListView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.creating = false
		return v, nil

	case key.Matches(msg, v.keys.Save):
		return v, v.vm.Create(v.newName.Value(), v.newDesc.Value())

	case key.Matches(msg, v.keys.ShiftTab):
		v.focusIdx = (v.focusIdx + 2) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Tab):
		v.focusIdx = (v.focusIdx + 1) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.focusIdx < 2 {
			v.focusIdx++
			v.updateFocus()
			return v, nil
		}
		return v, v.vm.Create(v.newName.Value(), v.newDesc.Value())
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.newName, cmd = v.newName.Update(msg)
	case 1:
		v.newDesc, cmd = v.newDesc.Update(msg)
	}
	return v, cmd
}

func (v *ProjectListView) updateFocus() {
	v.newName.Blur()
	v.newDesc.Blur()
	switch v.focusIdx {
	case 0:
		v.newName.Focus()
	case 1:
		v.newDesc.Focus()
	}
}

// View renders the view
func (v *ProjectListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if p, pending := v.vm.PendingDelete(); pending {
		return v.renderDeleteConfirm(p)
	}

	if v.creating {
		return v.renderCreateForm()
	}

	s := v.styles
	switch {
	case !v.vm.HasData() && v.vm.Phase == viewmodel.PhaseFailed:
		return styles.CenterView(withToast(s, &v.vm.Toast, v.renderFailed()), v.width, v.height)
	case !v.vm.HasData():
		return s.TitleMuted.Render("Loading...")
	case len(v.vm.Projects()) == 0:
		return v.renderEmpty()
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		v.renderHeader(),
		v.list.View(),
		v.renderHelp(),
	)
	return styles.CenterView(withToast(s, &v.vm.Toast, content), v.width, v.height)
}

func (v *ProjectListView) renderHeader() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	searchStyle := s.Input
	if v.searching {
		searchStyle = s.InputFocused
	}
	searchBox := searchStyle.Width(clamp(contentWidth-8, 10, 40)).Render(v.search.View())

	user := ""
	if v.email != "" {
		user = s.TitleMuted.Render("signed in as " + v.email)
	}

	if len(v.vm.Filtered()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, user, searchBox,
			s.TitleMuted.Render("No projects match the search."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, user, searchBox)
}

func (v *ProjectListView) renderFailed() string {
	s := v.styles
	msg := "Could not load projects."
	if v.vm.Err != nil {
		msg = "Could not load projects: " + api.Message(v.vm.Err)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		s.Error.Render(msg),
		"",
		s.TitleMuted.Render("Press 'r' to retry or 'q' to quit"),
	)
}

func (v *ProjectListView) renderEmpty() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render("No Projects"),
		"",
		s.TitleMuted.Render("Press 'n' to create your first project"),
		"",
		s.ButtonPrimary.Render(" New Project "),
	)
	content = withToast(s, &v.vm.Toast, content)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	nameStyle := s.Input
	descStyle := s.Input
	btnStyle := s.Button

	switch v.focusIdx {
	case 0:
		nameStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		btnStyle = s.ButtonFocused
	}

	// Dynamic input width based on content width
	inputWidth := clamp(contentWidth-6, 20, 50)

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("New Project"),
		"",
		"Title:",
		nameStyle.Width(inputWidth).Render(v.newName.View()),
		"",
		"Description:",
		descStyle.Width(inputWidth).Render(v.newDesc.View()),
		"",
		btnStyle.Render(" Create "),
		"",
		s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"),
	)
	form = withToast(s, &v.vm.Toast, form)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 60 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s open • %s new • %s del • %s search • %s logout • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("d"),
			v.styles.HelpKey.Render("/"),
			v.styles.HelpKey.Render("L"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *ProjectListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      open project",
		s.HelpKey.Render("n") + "      new project",
		s.HelpKey.Render("d") + "      delete project",
		s.HelpKey.Render("/") + "      search projects",
		s.HelpKey.Render("r") + "      refresh",
		s.HelpKey.Render("L") + "      logout",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderDeleteConfirm(p models.Project) string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Project?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("Are you sure you want to delete %q?", p.Title)),
		s.TitleMuted.Render("This will also delete all tasks in this project."),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}
