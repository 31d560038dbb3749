package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

type task struct {
	Command string `json:"command"`
}

// scheduleRegistry records cron-scheduled commands. Tasks are kept per
// cron expression and keyed by the key their command targets. Nothing is
// executed.
type scheduleRegistry struct {
	mu    sync.Mutex
	tasks map[string]map[string]task
}

func newScheduleRegistry() *scheduleRegistry {
	return &scheduleRegistry{tasks: make(map[string]map[string]task)}
}

// parseCron accepts standard five-field expressions and descriptors such as
// "@hourly".
func parseCron(s string) (cron.Schedule, error) {
	return cron.ParseStandard(strings.TrimSpace(s))
}

func isCron(s string) bool {
	_, err := parseCron(s)
	return err == nil
}

func (r *scheduleRegistry) command(args string) string {
	action, details, ok := strings.Cut(strings.TrimSpace(args), " ")
	details = strings.TrimSpace(details)
	if !ok || details == "" {
		return "ERROR: Missing arguments for SCHEDULE command"
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch strings.ToUpper(action) {
	case "SHOW":
		switch {
		case strings.EqualFold(details, "ALL"):
			return toJSON(r.tasks)
		case isCron(details):
			tasks, ok := r.tasks[details]
			if !ok {
				return "{}"
			}
			return toJSON(tasks)
		default:
			return r.findByKey(details)
		}
	case "ADD":
		return r.add(details)
	case "DEL":
		for expr, tasks := range r.tasks {
			if _, ok := tasks[details]; ok {
				delete(tasks, details)
				if len(tasks) == 0 {
					delete(r.tasks, expr)
				}
				return "OK"
			}
		}
		return fmt.Sprintf("ERROR: Task with key %s not found", details)
	case "FLUSH":
		if strings.EqualFold(details, "ALL") {
			r.tasks = make(map[string]map[string]task)
			return "OK"
		}
		if _, ok := r.tasks[details]; !ok {
			return fmt.Sprintf("ERROR: No tasks scheduled for %s", details)
		}
		delete(r.tasks, details)
		return "OK"
	default:
		return "ERROR: Invalid SCHEDULE command"
	}
}

// add parses "<cron> COMMAND(<verb> <key> ...)".
func (r *scheduleRegistry) add(details string) string {
	expr, cmd, ok := strings.Cut(details, " COMMAND(")
	expr = strings.TrimSpace(expr)
	if !ok || !strings.HasSuffix(cmd, ")") {
		return "ERROR: Failed to add task - expected <cron> COMMAND(<command>)"
	}
	if _, err := parseCron(expr); err != nil {
		return "ERROR: Failed to add task - " + err.Error()
	}
	cmd = strings.TrimSuffix(cmd, ")")
	fields := strings.Fields(cmd)
	if len(fields) < 2 {
		return "ERROR: Command format incorrect, missing key"
	}
	key := fields[1]
	if r.tasks[expr] == nil {
		r.tasks[expr] = make(map[string]task)
	}
	r.tasks[expr][key] = task{Command: cmd}
	return "OK"
}

func (r *scheduleRegistry) findByKey(key string) string {
	found := make(map[string]map[string]task)
	for expr, tasks := range r.tasks {
		if t, ok := tasks[key]; ok {
			found[expr] = map[string]task{key: t}
		}
	}
	if len(found) == 0 {
		return fmt.Sprintf("No tasks found for key %s.", key)
	}
	return toJSON(found)
}
