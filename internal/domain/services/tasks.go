package services

import "context"

// TaskQueue is the background task collaborator: best-effort,
// at-least-once dispatch of named tasks.
type TaskQueue interface {
	// Enqueue schedules a task and returns its id
	Enqueue(ctx context.Context, task string, args map[string]string) (string, error)
}
