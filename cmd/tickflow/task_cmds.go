package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nhle/tickflow/internal/model"
	"github.com/nhle/tickflow/internal/theme"
	"github.com/nhle/tickflow/internal/ui/taskform"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every task in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

			tasks, closeTasks, err := openTaskService(cmd.Context(), cfg, logger, lazyKeyring(cfg.Credentials))
			if err != nil {
				return err
			}
			defer closeTasks()

			all, err := tasks.ReadAllTasks(cmd.Context())
			if err != nil {
				return err
			}

			warnEphemeral(cmd.ErrOrStderr(), cfg)
			fmt.Fprintln(cmd.OutOrStdout(), theme.TaskTable(all))
			return nil
		},
	}
}

type addFlags struct {
	userID      int64
	title       string
	description string
	status      string
	due         string
	interactive bool
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var f addFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Long: "Create a task from flags, or fill in a form with --interactive.\n" +
			"Flag values pre-fill the form.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

			defaults := model.CreateTask{
				UserID:      f.userID,
				Title:       f.title,
				Description: f.description,
				Status:      model.TaskStatus(f.status),
			}
			if f.due != "" {
				due, err := model.ParseTime(f.due)
				if err != nil {
					return err
				}
				defaults.DueDate = &due
			}

			form := taskform.New(defaults)
			var payload model.CreateTask
			if f.interactive {
				payload, err = form.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
				if errors.Is(err, taskform.ErrAborted) {
					fmt.Fprintln(cmd.ErrOrStderr(), theme.HelpStyle.Render("Cancelled."))
					return nil
				}
			} else {
				payload, err = form.Payload()
			}
			if err != nil {
				return err
			}

			tasks, closeTasks, err := openTaskService(cmd.Context(), cfg, logger, lazyKeyring(cfg.Credentials))
			if err != nil {
				return err
			}
			defer closeTasks()

			task, err := tasks.CreateTask(cmd.Context(), payload)
			if err != nil {
				return err
			}

			warnEphemeral(cmd.ErrOrStderr(), cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.SuccessStyle.Render("Created task "+task.ID.String()))
			fmt.Fprintln(out, theme.TaskTable([]model.Task{task}))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64VarP(&f.userID, "user", "u", 0, "owning user id")
	flags.StringVarP(&f.title, "title", "t", "", "task title")
	flags.StringVarP(&f.description, "description", "d", "", "task description")
	flags.StringVarP(&f.status, "status", "s", string(model.StatusTodo), "todo, in_progress or done")
	flags.StringVar(&f.due, "due", "", "due date, YYYY-MM-DD or RFC 3339")
	flags.BoolVarP(&f.interactive, "interactive", "i", false, "fill in the task with a form")
	return cmd
}

type updateFlags struct {
	title       string
	description string
	status      string
	due         string
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var f updateFlags

	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change fields of an existing task",
		Long:  "Change the given fields of a task. Fields without a flag keep their value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing task id %q: %w", args[0], err)
			}

			flags := cmd.Flags()
			patch := model.NewUpdateTask()
			if flags.Changed("title") {
				patch.Title = model.Some(f.title)
			}
			if flags.Changed("description") {
				patch.Description = model.Some(f.description)
			}
			if flags.Changed("status") {
				status, err := model.ParseTaskStatus(f.status)
				if err != nil {
					return err
				}
				patch.Status = model.Some(status)
			}
			if flags.Changed("due") {
				due, err := model.ParseTime(f.due)
				if err != nil {
					return err
				}
				patch.DueDate = model.Some(due)
			}
			if patch.Empty() {
				return errors.New("nothing to update: pass at least one of --title, --description, --status, --due")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

			tasks, closeTasks, err := openTaskService(cmd.Context(), cfg, logger, lazyKeyring(cfg.Credentials))
			if err != nil {
				return err
			}
			defer closeTasks()

			task, ok, err := tasks.UpdateTask(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("task %s not found", id)
			}

			warnEphemeral(cmd.ErrOrStderr(), cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.SuccessStyle.Render("Updated task "+task.ID.String()))
			fmt.Fprintln(out, theme.TaskTable([]model.Task{task}))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.title, "title", "t", "", "new title")
	flags.StringVarP(&f.description, "description", "d", "", "new description")
	flags.StringVarP(&f.status, "status", "s", "", "todo, in_progress or done")
	flags.StringVar(&f.due, "due", "", "new due date, YYYY-MM-DD or RFC 3339")
	return cmd
}

// warnEphemeral notes that the memory backend forgets everything on exit.
func warnEphemeral(w io.Writer, cfg *model.AppConfig) {
	if cfg.Store.Backend == model.BackendMemory {
		fmt.Fprintln(w, theme.HelpStyle.Render("store.backend is memory; tasks are not kept between runs."))
	}
}
