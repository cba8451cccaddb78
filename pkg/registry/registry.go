// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"mockexam-workers/internal/common/config"
	"mockexam-workers/internal/common/validation"
)

// LoadRegistry reads and validates the activity catalogue at path.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode activity registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks task type naming, uniqueness and timeouts.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if err := validation.ValidateActivityNaming(a.TaskType); err != nil {
			return fmt.Errorf("activity %q: %w", a.ID, err)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("activity %q: duplicate task type %s", a.ID, a.TaskType)
		}
		seen[a.TaskType] = true

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %q: invalid timeout %q", a.ID, a.Timeout)
			}
		}
	}
	return nil
}

func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// TaskTypes returns the catalogued task types in sorted order.
func (r *ActivityRegistry) TaskTypes() []string {
	types := make([]string, 0, len(r.Activities))
	for _, a := range r.Activities {
		types = append(types, a.TaskType)
	}
	sort.Strings(types)
	return types
}

// TimeoutDuration returns the parsed timeout, or fallback when unset.
func (a *Activity) TimeoutDuration(fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(a.Timeout); err == nil && d > 0 {
		return d
	}
	return fallback
}

// ApplyTimeouts copies catalogued timeouts onto the worker settings in cfg.
// workers maps worker config names to task types. Task types missing from the
// catalogue are returned sorted and their settings are left alone.
func (r *ActivityRegistry) ApplyTimeouts(cfg *config.Config, workers map[string]string) []string {
	if cfg == nil {
		return nil
	}
	var missing []string
	for name, taskType := range workers {
		activity, ok := r.Find(taskType)
		if !ok {
			missing = append(missing, taskType)
			continue
		}

		wc, exists := config.GetWorkerConfig(cfg, name)
		if !exists {
			wc = config.WorkerConfig{Enabled: true}
		}
		timeout := activity.TimeoutDuration(config.GetDuration(wc.Timeout))
		wc.Timeout = int(timeout / time.Millisecond)

		if cfg.Workers == nil {
			cfg.Workers = make(map[string]config.WorkerConfig)
		}
		cfg.Workers[name] = wc
	}
	sort.Strings(missing)
	return missing
}

// Add appends a new activity. Ids and task types must be unique.
func (r *ActivityRegistry) Add(activity Activity) error {
	if activity.ID == "" || activity.DisplayName == "" || activity.Category == "" {
		return fmt.Errorf("id, displayName and category are required")
	}
	if err := validation.ValidateActivityNaming(activity.TaskType); err != nil {
		return err
	}
	for _, existing := range r.Activities {
		if existing.ID == activity.ID {
			return fmt.Errorf("activity with ID %s already exists", activity.ID)
		}
		if existing.TaskType == activity.TaskType {
			return fmt.Errorf("task type %s already registered by %s", activity.TaskType, existing.ID)
		}
	}

	r.Activities = append(r.Activities, activity)
	r.touch()
	return nil
}

// Set changes one field of the activity with the given id.
func (r *ActivityRegistry) Set(id, field, value string) error {
	var activity *Activity
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			activity = &r.Activities[i]
			break
		}
	}
	if activity == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "displayName":
		activity.DisplayName = value
	case "description":
		activity.Description = value
	case "category":
		activity.Category = value
	case "taskType":
		if err := validation.ValidateActivityNaming(value); err != nil {
			return err
		}
		activity.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", value, err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid retries value %q", value)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	r.touch()
	return nil
}

// Save writes the registry as indented JSON, creating the directory if needed.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func (r *ActivityRegistry) touch() {
	r.LastUpdated = time.Now().UTC().Format("2006-01-02")
}
