package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/viewmodel"
)

func newProjectsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "List, create and delete projects",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(); err != nil {
				return err
			}
			return e.requireSession()
		},
	}
	cmd.AddCommand(
		newProjectsListCmd(e),
		newProjectsShowCmd(e),
		newProjectsCreateCmd(e),
		newProjectsDeleteCmd(e),
	)
	return cmd
}

func newProjectsListCmd(e *env) *cobra.Command {
	var (
		search string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := e.projects.List(cmd.Context())
			if err != nil {
				return err
			}
			projects = viewmodel.FilterProjects(projects, search)

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, projects)
			}
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects found")
				return nil
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{
					strconv.FormatInt(p.ID, 10),
					p.Title,
					fmt.Sprintf("%d/%d", p.CompletedTasks, p.TotalTasks),
					p.Description,
				})
			}
			printTable(out, []string{"ID", "TITLE", "DONE", "DESCRIPTION"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only show projects whose title contains this text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newProjectsShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project and its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			project, err := e.projects.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			tasks, err := e.tasks.List(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "#%d %s\n", project.ID, project.Title)
			if project.Description != "" {
				fmt.Fprintln(out, project.Description)
			}
			if project.CreatedAt != "" {
				fmt.Fprintf(out, "created %s\n", project.CreatedAt)
			}
			done := 0
			for _, t := range tasks {
				if t.Completed {
					done++
				}
			}
			fmt.Fprintf(out, "%d%% complete (%d/%d tasks)\n", viewmodel.Progress(tasks), done, len(tasks))
			return nil
		},
	}
}

func newProjectsCreateCmd(e *env) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			existing, err := e.projects.List(cmd.Context())
			if err != nil {
				return err
			}
			title, err := viewmodel.ValidateNewTitle(args[0], projectTitles(existing))
			if err != nil {
				return err
			}
			project, err := e.projects.Create(cmd.Context(), title, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project #%d %s\n", project.ID, project.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "project description")
	return cmd
}

func projectTitles(projects []models.Project) []string {
	titles := make([]string, len(projects))
	for i, p := range projects {
		titles[i] = p.Title
	}
	return titles
}

func newProjectsDeleteCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <project-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a project and all of its tasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			project, err := e.projects.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete project %q and all of its tasks?", project.Title))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}
			if err := e.projects.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project #%d %s\n", project.ID, project.Title)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
