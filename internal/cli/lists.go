package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/and161185/dolist/internal/app"
	"github.com/and161185/dolist/internal/lists"
	"github.com/and161185/dolist/internal/model"
	"github.com/spf13/cobra"
)

type listView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	IsCompleted bool       `json:"isCompleted"`
	Total       int        `json:"total"`
	Done        int        `json:"done"`
	Tasks       []taskView `json:"tasks,omitempty"`
}

type taskView struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsCompleted bool   `json:"isCompleted"`
}

func check(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func listsCmd(o *options) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show your lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				sums, err := a.Lists.Lists(ctx, u, model.ParseFilter(filter))
				if err != nil {
					return err
				}
				out := make([]listView, 0, len(sums))
				for _, s := range sums {
					out = append(out, listView{ID: s.ID, Title: s.Title, IsCompleted: s.IsCompleted, Total: s.Total, Done: s.Done})
				}
				if o.json {
					return printJSON(cmd.OutOrStdout(), out)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, l := range out {
					fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", check(l.IsCompleted), l.Title, l.Done, l.Total, l.ID)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", string(model.FilterAll), "all, completed or pending")
	return cmd
}

func createCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create TITLE TASK...",
		Short: "Create a list with at least one task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				l, err := a.Lists.CreateList(ctx, u, args[0], args[1:])
				if err != nil {
					return err
				}
				return o.printID(cmd.OutOrStdout(), l.ID)
			})
		},
	}
}

func showCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show LIST_ID",
		Short: "Show a list and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				l, tasks, err := a.Lists.GetList(ctx, u, args[0])
				if err != nil {
					return err
				}
				v := listView{ID: l.ID, Title: l.Title, IsCompleted: l.IsCompleted, Total: len(tasks)}
				for _, t := range tasks {
					if t.IsCompleted {
						v.Done++
					}
					v.Tasks = append(v.Tasks, taskView{ID: t.ID, Text: t.Text, IsCompleted: t.IsCompleted})
				}
				if o.json {
					return printJSON(cmd.OutOrStdout(), v)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s %s (%d/%d)\n", check(v.IsCompleted), v.Title, v.Done, v.Total)
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, t := range v.Tasks {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", check(t.IsCompleted), t.Text, t.ID)
				}
				return tw.Flush()
			})
		},
	}
}

func renameCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename LIST_ID TITLE",
		Short: "Rename a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				return a.Lists.EditList(ctx, u, model.ListEdit{ListID: args[0], Title: args[1]})
			})
		},
	}
}

func addTaskCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add-task LIST_ID TEXT",
		Short: "Add a task to a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				t, err := a.Lists.AddTask(ctx, u, args[0], args[1])
				if err != nil {
					return err
				}
				return o.printID(cmd.OutOrStdout(), t.ID)
			})
		},
	}
}

func doneCmd(o *options, done bool) *cobra.Command {
	use, short := "done TASK_ID", "Mark a task completed"
	if !done {
		use, short = "undone TASK_ID", "Mark a task not completed"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				return a.Lists.SetTaskCompleted(ctx, u, args[0], done)
			})
		},
	}
}

func editTaskCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit-task TASK_ID TEXT",
		Short: "Change the text of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				return a.Lists.UpdateTaskText(ctx, u, args[0], args[1])
			})
		},
	}
}

func rmTaskCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-task TASK_ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				return a.Lists.RemoveTask(ctx, u, args[0])
			})
		},
	}
}

func rmListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-list LIST_ID",
		Short: "Delete a list and all of its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				return a.Lists.DeleteList(ctx, u, args[0])
			})
		},
	}
}

func importCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import lists from a YAML file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readAll(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			in, err := lists.ParseImport(bytes.NewReader(b))
			if err != nil {
				return err
			}
			return o.withUser(cmd, func(ctx context.Context, a *app.App, u *model.User) error {
				n, err := a.Lists.Import(ctx, u, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d lists\n", n)
				return nil
			})
		},
	}
}

func (o *options) printID(w io.Writer, id string) error {
	if o.json {
		return printJSON(w, map[string]string{"id": id})
	}
	_, err := fmt.Fprintln(w, id)
	return err
}
