package crew

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Task is one unit of work for one agent. Context tasks' outputs are fed
// into the description at run time, mirroring a sequential hand-off.
type Task struct {
	// Name identifies the task in logs and metrics.
	Name string

	// Description is the instruction given to the agent.
	Description string

	// ExpectedOutput tells the model what shape of answer is wanted.
	ExpectedOutput string

	// Agent executes this task. Must not be nil.
	Agent *Agent

	// Context lists earlier tasks whose outputs this task builds on.
	Context []*Task

	// output is set by the runner after the task completes.
	output string
}

// Output returns the task's result. Empty until the crew has run it.
func (t *Task) Output() string {
	return t.output
}

// Recorder receives per-task telemetry. Implementations must tolerate
// concurrent calls. A nil Recorder disables recording.
type Recorder interface {
	TaskCompleted(taskName string, duration time.Duration, err error)
}

// Crew runs its tasks strictly in order, feeding each task's output forward
// through task Context. A task is retried once when its agent fails; two
// consecutive failures abort the run.
type Crew struct {
	Tasks    []*Task
	Recorder Recorder
}

// Run executes all tasks sequentially and returns the final task's output.
func (c *Crew) Run(ctx context.Context) (string, error) {
	if len(c.Tasks) == 0 {
		return "", fmt.Errorf("crew: no tasks to run")
	}

	for _, task := range c.Tasks {
		if task.Agent == nil {
			return "", fmt.Errorf("crew: task %s has no agent", task.Name)
		}

		description := task.Description
		if contextBlock := renderContext(task.Context); contextBlock != "" {
			description = description + "\n\nContext from previous steps:\n" + contextBlock
		}
		if task.ExpectedOutput != "" {
			description = description + "\n\nExpected output: " + task.ExpectedOutput
		}

		start := time.Now()
		output, err := task.Agent.Execute(ctx, description)
		if err != nil {
			slog.Warn("task failed, retrying once",
				"task", task.Name,
				"agent", task.Agent.Name,
				"error", err)
			output, err = task.Agent.Execute(ctx, description)
		}
		duration := time.Since(start)

		if c.Recorder != nil {
			c.Recorder.TaskCompleted(task.Name, duration, err)
		}
		if err != nil {
			return "", fmt.Errorf("crew: task %s: %w", task.Name, err)
		}

		task.output = output
		slog.Info("task completed",
			"task", task.Name,
			"agent", task.Agent.Name,
			"duration", duration,
			"output_bytes", len(output))
	}

	return c.Tasks[len(c.Tasks)-1].output, nil
}

// renderContext joins the outputs of completed context tasks.
func renderContext(tasks []*Task) string {
	var parts []string
	for _, t := range tasks {
		if t.output != "" {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", t.Name, t.output))
		}
	}
	return strings.Join(parts, "\n\n")
}
