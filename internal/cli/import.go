package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AgentTrail/AgentTrail/internal/feed"
	"github.com/AgentTrail/AgentTrail/internal/recorder"
)

var importCmd = &cobra.Command{
	Use:   "import <events.jsonl>",
	Short: "Record a task from a JSONL event stream (use - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().String("backend", "", "Wire schema of the events (claude or codex)")
	importCmd.Flags().String("prompt", "", "User prompt that started the task")
	importCmd.Flags().String("task", "", "Task id (generated when empty)")
	importCmd.Flags().Bool("failed", false, "Mark the task failed after import")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	backend, _ := cmd.Flags().GetString("backend")
	prompt, _ := cmd.Flags().GetString("prompt")
	taskID, _ := cmd.Flags().GetString("task")
	failed, _ := cmd.Flags().GetBool("failed")

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if backend == "" {
		backend = cfg.Record.DefaultBackend
	}

	var pub feed.Publisher
	if cfg.Feed.Enabled && cfg.Feed.Brokers != "" {
		kp := feed.NewKafkaPublisher(cfg.Feed.Brokers, cfg.Feed.Topic, cfg.Feed.ClientID)
		defer kp.Close()
		pub = kp
	}

	rec, err := recorder.New(st, recorder.Options{
		TaskID:  taskID,
		Backend: backend,
		Prompt:  prompt,
		KeepRaw: cfg.Record.KeepRaw,
		Feed:    pub,
	})
	if err != nil {
		return err
	}

	in := os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var lines int
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := rec.HandleEvent([]byte(line)); err != nil {
			return fmt.Errorf("line %d: %w", lines+1, err)
		}
		lines++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if err := rec.Finish(failed); err != nil {
		return err
	}

	fmt.Printf("Imported %d events into task %s\n", lines, rec.TaskID())
	return nil
}
