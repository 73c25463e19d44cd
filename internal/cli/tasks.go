package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AgentTrail/AgentTrail/internal/store"
)

var (
	tasksCmd = &cobra.Command{
		Use:   "tasks",
		Short: "List recorded tasks",
		RunE:  runTasks,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and everything recorded under it",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
)

func init() {
	tasksCmd.Flags().Bool("json", false, "Output machine-readable JSON")
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tasks, err := st.ListTasks()
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks recorded.")
		return nil
	}
	for _, t := range tasks {
		status := t.Status
		switch t.Status {
		case store.TaskStatusCompleted:
			status = color.GreenString(t.Status)
		case store.TaskStatusFailed:
			status = color.RedString(t.Status)
		case store.TaskStatusRunning:
			status = color.YellowString(t.Status)
		}
		prompt := t.Prompt
		if len(prompt) > 60 {
			prompt = prompt[:57] + "..."
		}
		fmt.Printf("%s  %-6s  %-9s  %s\n", t.TaskID, t.Backend, status, prompt)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.GetTask(args[0]); err != nil {
		return err
	}
	if err := st.DeleteTask(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s\n", args[0])
	return nil
}
