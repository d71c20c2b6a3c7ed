package views

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/viewmodel"
)

// FocusArea represents which part of the UI has focus
type FocusArea int

const (
	FocusTaskList FocusArea = iota
	FocusSearchInput
)

const editFields = 4 // title, description, due date, save

// ProjectView shows one project and its tasks
type ProjectView struct {
	vm     *viewmodel.Detail
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	// UI state
	focus       FocusArea
	cursor      int
	scrollY     int
	searchInput textinput.Model

	// Task creation/editing
	editing      bool
	editingID    int64 // 0 while creating
	editTitle    textinput.Model
	editDesc     textarea.Model
	editDue      textinput.Model
	editFocusIdx int // 0=title, 1=desc, 2=due, 3=save

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// NewProjectView creates the detail screen for the project held by vm
func NewProjectView(vm *viewmodel.Detail) *ProjectView {
	search := textinput.New()
	search.Placeholder = "Search tasks..."
	search.CharLimit = 100

	editTitle := textinput.New()
	editTitle.Placeholder = "Task title"
	editTitle.CharLimit = 200

	editDesc := textarea.New()
	editDesc.Placeholder = "Task description"
	editDesc.CharLimit = 1000
	editDesc.SetWidth(50)
	editDesc.SetHeight(3)
	editDesc.ShowLineNumbers = false

	editDue := textinput.New()
	editDue.Placeholder = "YYYY-MM-DD"
	editDue.CharLimit = 19

	return &ProjectView{
		vm:          vm,
		styles:      styles.NewStyles(),
		keys:        keys.DefaultKeyMap(),
		focus:       FocusTaskList,
		searchInput: search,
		editTitle:   editTitle,
		editDesc:    editDesc,
		editDue:     editDue,
	}
}

// Init loads the project and its tasks
func (v *ProjectView) Init() tea.Cmd {
	return v.vm.Load()
}

func (v *ProjectView) visible() []models.Task {
	return v.vm.Filtered()
}

func (v *ProjectView) selected() (models.Task, bool) {
	tasks := v.visible()
	if v.cursor < 0 || v.cursor >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[v.cursor], true
}

func (v *ProjectView) clampCursor() {
	n := len(v.visible())
	if v.cursor >= n {
		v.cursor = max(0, n-1)
	}
	v.ensureVisible()
}

// Update handles messages
func (v *ProjectView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Update textarea widths dynamically based on content width
		contentWidth := styles.ContentWidth(v.width)
		v.editDesc.SetWidth(clamp(contentWidth-10, 20, 50))
		return v, nil

	case viewmodel.TaskCreatedMsg:
		if msg.Err == nil {
			v.editing = false
		}
	case viewmodel.TaskUpdatedMsg:
		if msg.Err == nil {
			v.editing = false
		}

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if _, pending := v.vm.PendingDelete(); pending {
			return v.updateConfirmDelete(msg)
		}

		if v.editing {
			return v.updateEditing(msg)
		}

		return v.updateNormal(msg)
	}

	cmd := v.vm.Update(msg)
	v.clampCursor()

	// a project that was deleted elsewhere (or is not ours) has nothing to show
	if _, ok := msg.(viewmodel.DetailLoadedMsg); ok && !v.vm.HasData() && projectGone(v.vm.Err) {
		return v, tea.Batch(cmd, navigate("/projects"))
	}
	return v, cmd
}

func projectGone(err error) bool {
	return api.IsStatus(err, http.StatusNotFound) || api.IsStatus(err, http.StatusForbidden)
}

func (v *ProjectView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle search input typing first - don't process hotkeys while typing
	if v.focus == FocusSearchInput {
		switch {
		case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter), key.Matches(msg, v.keys.Tab):
			v.searchInput.Blur()
			v.focus = FocusTaskList
			return v, nil
		default:
			var cmd tea.Cmd
			v.searchInput, cmd = v.searchInput.Update(msg)
			searchCmd := v.vm.SetSearch(v.searchInput.Value())
			v.cursor = 0
			v.clampCursor()
			return v, tea.Batch(cmd, searchCmd)
		}
	}

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		return v, navigate("/projects")

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.visible())-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Search), key.Matches(msg, v.keys.Tab):
		v.focus = FocusSearchInput
		v.searchInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Filter):
		cmd := v.vm.CycleStatus()
		v.cursor = 0
		v.clampCursor()
		return v, cmd

	case key.Matches(msg, v.keys.ServerSearch):
		cmd := v.vm.UseServerSearch(!v.vm.ServerSearch())
		v.clampCursor()
		return v, cmd

	case key.Matches(msg, v.keys.Complete):
		if t, ok := v.selected(); ok {
			return v, v.vm.Complete(t.ID)
		}
		return v, nil

	case key.Matches(msg, v.keys.Edit), key.Matches(msg, v.keys.Enter):
		if t, ok := v.selected(); ok {
			v.startEditTask(t)
			return v, textinput.Blink
		}
		return v, nil

	case key.Matches(msg, v.keys.New):
		v.startNewTask()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Delete):
		if t, ok := v.selected(); ok {
			v.vm.RequestDelete(t)
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.vm.Load()

	case key.Matches(msg, v.keys.Logout):
		return v, func() tea.Msg { return LogoutRequested{} }

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *ProjectView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return v, v.vm.ConfirmDelete()
	case "n", "N", "esc":
		v.vm.CancelDelete()
		return v, nil
	}
	return v, nil
}

func (v *ProjectView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.editing = false
		return v, nil

	case key.Matches(msg, v.keys.Save):
		return v, v.saveTask()

	case key.Matches(msg, v.keys.Tab):
		v.editFocusIdx = (v.editFocusIdx + 1) % editFields
		v.updateEditFocus()
		return v, nil

	case key.Matches(msg, v.keys.ShiftTab):
		v.editFocusIdx = (v.editFocusIdx + editFields - 1) % editFields
		v.updateEditFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		switch v.editFocusIdx {
		case 0, 2:
			v.editFocusIdx++
			v.updateEditFocus()
			return v, nil
		case 3:
			return v, v.saveTask()
		}
		// enter inside the description adds a newline
	}

	var cmd tea.Cmd
	switch v.editFocusIdx {
	case 0:
		v.editTitle, cmd = v.editTitle.Update(msg)
	case 1:
		v.editDesc, cmd = v.editDesc.Update(msg)
	case 2:
		v.editDue, cmd = v.editDue.Update(msg)
	}
	return v, cmd
}

func (v *ProjectView) ensureVisible() {
	visibleItems := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visibleItems {
		v.scrollY = v.cursor - visibleItems + 1
	}
}

// visibleItems is how many tasks fit, each task taking 2 lines plus a margin
func (v *ProjectView) visibleItems() int {
	availableHeight := max(v.height-14, 3)
	return max(availableHeight/3, 1)
}

func (v *ProjectView) startNewTask() {
	v.editing = true
	v.editingID = 0
	v.editFocusIdx = 0
	v.editTitle.Reset()
	v.editDesc.Reset()
	v.editDue.Reset()
	v.updateEditFocus()
}

func (v *ProjectView) startEditTask(task models.Task) {
	v.editing = true
	v.editingID = task.ID
	v.editFocusIdx = 0
	v.editTitle.SetValue(task.Title)
	v.editDesc.SetValue(task.Description)
	v.editDue.SetValue(task.Due())
	v.updateEditFocus()
}

func (v *ProjectView) updateEditFocus() {
	v.editTitle.Blur()
	v.editDesc.Blur()
	v.editDue.Blur()

	switch v.editFocusIdx {
	case 0:
		v.editTitle.Focus()
	case 1:
		v.editDesc.Focus()
	case 2:
		v.editDue.Focus()
	}
}

func (v *ProjectView) saveTask() tea.Cmd {
	form := viewmodel.TaskForm{
		Title:       v.editTitle.Value(),
		Description: strings.TrimSpace(v.editDesc.Value()),
		DueDate:     v.editDue.Value(),
	}
	if v.editingID == 0 {
		return v.vm.Create(form)
	}
	return v.vm.Edit(v.editingID, form)
}

// View renders the view
func (v *ProjectView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if t, pending := v.vm.PendingDelete(); pending {
		return v.renderDeleteConfirm(t)
	}

	if v.editing {
		return v.renderEditForm()
	}

	s := v.styles
	if !v.vm.HasData() {
		if v.vm.Phase == viewmodel.PhaseFailed {
			content := lipgloss.JoinVertical(lipgloss.Left,
				s.Error.Render("Could not load project: "+api.Message(v.vm.Err)),
				"",
				s.TitleMuted.Render("Press 'r' to retry or esc to go back"),
			)
			return styles.CenterView(content, v.width, v.height)
		}
		return s.TitleMuted.Render("Loading...")
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.renderTaskList())
	b.WriteString("\n")
	b.WriteString(v.renderHelp())

	return styles.CenterView(withToast(s, &v.vm.Toast, b.String()), v.width, v.height)
}

func (v *ProjectView) renderHeader() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	isNarrow := contentWidth < 60

	title := "Project"
	desc := ""
	if p := v.vm.Project(); p != nil {
		title = p.Title
		desc = p.Description
	}

	barWidth := clamp(contentWidth-30, 10, 40)
	progress := fmt.Sprintf("%s %d%% (%d/%d)",
		s.ProgressBar(barWidth, v.vm.Progress()),
		v.vm.Progress(), v.vm.Completed(), len(v.vm.Tasks()))

	searchStyle := s.Input
	if v.focus == FocusSearchInput {
		searchStyle = s.InputFocused
	}
	searchBox := searchStyle.Width(clamp(contentWidth-8, 10, 30)).Render(v.searchInput.View())

	statusLabel := v.vm.Status().String()
	if !isNarrow {
		statusLabel = "Status: " + statusLabel
	}
	statusBtn := s.Button.Render(statusLabel + " ▼")

	mode := ""
	if v.vm.ServerSearch() {
		mode = s.TitleMuted.Render("server search")
	}

	var controls string
	if isNarrow {
		controls = lipgloss.JoinVertical(lipgloss.Left, searchBox, statusBtn)
	} else {
		backBtn := s.Button.Render("← Projects")
		controls = lipgloss.JoinHorizontal(lipgloss.Center,
			backBtn, "  ", searchBox, "  ", statusBtn, " ", mode,
		)
	}

	rows := []string{s.Title.Render(title)}
	if desc != "" {
		rows = append(rows, s.TitleMuted.Render(desc))
	}
	rows = append(rows, progress, controls)
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (v *ProjectView) renderTaskList() string {
	s := v.styles
	tasks := v.visible()

	if len(tasks) == 0 {
		if len(v.vm.Tasks()) == 0 {
			return s.TitleMuted.Render("No tasks. Press 'n' to create one.")
		}
		return s.TitleMuted.Render("No tasks match the current filter.")
	}

	var items []string
	endIdx := min(v.scrollY+v.visibleItems(), len(tasks))
	for i := v.scrollY; i < endIdx; i++ {
		items = append(items, v.renderTaskItem(tasks[i], i == v.cursor && v.focus == FocusTaskList))
	}

	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *ProjectView) renderTaskItem(task models.Task, selected bool) string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	width := max(contentWidth-4, 20)

	check := "[ ] "
	titleText := s.TaskTitle.Render(task.Title)
	if task.Completed {
		check = "[x] "
		titleText = s.TaskCompleted.Render(task.Title)
	}

	var details []string
	if due := task.Due(); due != "" {
		details = append(details, s.TaskDue.Render("due "+due))
	}
	if task.Description != "" {
		details = append(details, task.Description)
	}
	detailLine := strings.Join(details, " • ")
	if detailLine == "" {
		detailLine = s.TitleMuted.Render("no details")
	}

	// Apply styling based on selection state
	lineStyle := s.ListItem.Width(width)
	if selected {
		lineStyle = s.ListSelected.Width(width)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lineStyle.Render(check+titleText),
		lineStyle.Render("    "+detailLine),
	) + "\n"
}

func (v *ProjectView) renderEditForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	formTitle := "New Task"
	if v.editingID != 0 {
		formTitle = "Edit Task"
	}

	titleStyle := s.Input
	descStyle := s.Input
	dueStyle := s.Input
	btnStyle := s.Button

	switch v.editFocusIdx {
	case 0:
		titleStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		dueStyle = s.InputFocused
	case 3:
		btnStyle = s.ButtonFocused
	}

	// Dynamic input width based on content width
	inputWidth := clamp(contentWidth-6, 20, 50)

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(formTitle),
		"",
		"Title:",
		titleStyle.Width(inputWidth).Render(v.editTitle.View()),
		"",
		"Description:",
		descStyle.Render(v.editDesc.View()),
		"",
		"Due date (optional):",
		dueStyle.Width(20).Render(v.editDue.View()),
		"",
		btnStyle.Render(" Save "),
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

func (v *ProjectView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 70 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s complete • %s new • %s edit • %s del • %s search • %s status • %s back",
			v.styles.HelpKey.Render("c"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("e"),
			v.styles.HelpKey.Render("d"),
			v.styles.HelpKey.Render("/"),
			v.styles.HelpKey.Render("f"),
			v.styles.HelpKey.Render("esc"),
		),
	)
}

func (v *ProjectView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↑/↓") + "    move",
		s.HelpKey.Render("c") + "      mark complete",
		s.HelpKey.Render("n") + "      new task",
		s.HelpKey.Render("e/↵") + "    edit task",
		s.HelpKey.Render("d") + "      delete task",
		s.HelpKey.Render("/") + "      search tasks",
		s.HelpKey.Render("f") + "      cycle status filter",
		s.HelpKey.Render("S") + "      toggle server search",
		s.HelpKey.Render("r") + "      refresh",
		s.HelpKey.Render("esc") + "    back to projects",
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

func (v *ProjectView) renderDeleteConfirm(t models.Task) string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("Are you sure you want to delete %q?", t.Title)),
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
