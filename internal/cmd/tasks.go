package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/service"
	"github.com/tgienger/taskboard/internal/viewmodel"
)

func newTasksCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "Manage the tasks of a project",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(); err != nil {
				return err
			}
			return e.requireSession()
		},
	}
	cmd.AddCommand(
		newTasksListCmd(e),
		newTasksAddCmd(e),
		newTasksEditCmd(e),
		newTasksCompleteCmd(e),
		newTasksDeleteCmd(e),
		newTasksSearchCmd(e),
	)
	return cmd
}

func printTasks(w io.Writer, tasks []models.Task, asJSON bool) error {
	if asJSON {
		return printJSON(w, tasks)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return nil
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			done,
			t.Title,
			t.Due(),
			t.Description,
		})
	}
	printTable(w, []string{"ID", "DONE", "TITLE", "DUE", "DESCRIPTION"}, rows)
	return nil
}

func newTasksListCmd(e *env) *cobra.Command {
	var (
		search string
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list <project-id>",
		Aliases: []string{"ls"},
		Short:   "List the tasks of a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			filter, ok := viewmodel.ParseStatusFilter(status)
			if !ok {
				return fmt.Errorf("invalid status %q: want all, completed or pending", status)
			}
			tasks, err := e.tasks.List(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			return printTasks(cmd.OutOrStdout(), viewmodel.FilterTasks(tasks, search, filter), asJSON)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only show tasks whose title contains this text")
	cmd.Flags().StringVar(&status, "status", "all", "all, completed or pending")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

type taskFlags struct {
	title       string
	description string
	due         string
}

func (f *taskFlags) bind(cmd *cobra.Command, withTitle bool) {
	if withTitle {
		cmd.Flags().StringVarP(&f.title, "title", "t", "", "task title")
	}
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&f.due, "due", "", "due date as YYYY-MM-DD")
}

func taskTitles(tasks []models.Task, skip int64) []string {
	titles := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != skip {
			titles = append(titles, t.Title)
		}
	}
	return titles
}

func newTasksAddCmd(e *env) *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "add <project-id> <title>",
		Short: "Add a task to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			existing, err := e.tasks.List(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			title, err := viewmodel.ValidateNewTitle(args[1], taskTitles(existing, 0))
			if err != nil {
				return err
			}
			task, err := e.tasks.Create(cmd.Context(), projectID, models.TaskInput{
				Title:       title,
				Description: flags.description,
				DueDate:     &flags.due,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task #%d %s\n", task.ID, task.Title)
			return nil
		},
	}
	flags.bind(cmd, false)
	return cmd
}

// findTask loads the project's tasks and returns the one with id
func findTask(ctx context.Context, e *env, projectID, id int64) (models.Task, []models.Task, error) {
	tasks, err := e.tasks.List(ctx, projectID)
	if err != nil {
		return models.Task{}, nil, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, tasks, nil
		}
	}
	return models.Task{}, nil, fmt.Errorf("task %d not found in project %d", id, projectID)
}

func newTasksEditCmd(e *env) *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "edit <project-id> <task-id>",
		Short: "Change the title, description or due date of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			taskID, err := parseID(args[1], "task")
			if err != nil {
				return err
			}
			task, all, err := findTask(cmd.Context(), e, projectID, taskID)
			if err != nil {
				return err
			}

			changed := cmd.Flags().Changed
			if !changed("title") && !changed("description") && !changed("due") {
				return fmt.Errorf("nothing to change: pass --title, --description or --due")
			}
			input := models.TaskInput{
				Title:       task.Title,
				Description: task.Description,
				DueDate:     task.DueDate,
			}
			if changed("title") {
				title, err := viewmodel.ValidateNewTitle(flags.title, taskTitles(all, task.ID))
				if err != nil {
					return err
				}
				input.Title = title
			}
			if changed("description") {
				input.Description = flags.description
			}
			if changed("due") {
				input.DueDate = &flags.due
			}

			updated, err := e.tasks.Update(cmd.Context(), taskID, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task #%d %s\n", updated.ID, updated.Title)
			return nil
		},
	}
	flags.bind(cmd, true)
	return cmd
}

func newTasksCompleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "complete <task-id>",
		Aliases: []string{"done"},
		Short:   "Mark a task as completed",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			task, err := e.tasks.Complete(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed task #%d %s\n", task.ID, task.Title)
			return nil
		},
	}
}

func newTasksDeleteCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <task-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete task #%d?", taskID))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}
			if err := e.tasks.Delete(cmd.Context(), taskID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d\n", taskID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newTasksSearchCmd(e *env) *cobra.Command {
	var (
		query  service.SearchQuery
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <project-id>",
		Short: "Search a project's tasks on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			filter, ok := viewmodel.ParseStatusFilter(status)
			if !ok {
				return fmt.Errorf("invalid status %q: want all, completed or pending", status)
			}
			query.Completed = filter.Completed()

			tasks, err := e.tasks.Search(cmd.Context(), projectID, query)
			if err != nil {
				return err
			}
			return printTasks(cmd.OutOrStdout(), tasks, asJSON)
		},
	}
	f := cmd.Flags()
	f.StringVar(&query.Title, "title", "", "title contains")
	f.StringVar(&query.Description, "description", "", "description contains")
	f.StringVar(&status, "status", "all", "all, completed or pending")
	f.StringVar(&query.DueDateFrom, "from", "", "due on or after YYYY-MM-DD")
	f.StringVar(&query.DueDateTo, "to", "", "due on or before YYYY-MM-DD")
	f.BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
