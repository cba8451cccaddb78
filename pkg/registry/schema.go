package registry

// ActivityRegistry is the catalogue of task types the worker manager serves.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one BPMN service task. TaskType follows
// domain.subject.action and Timeout is a Go duration string.
type Activity struct {
	ID                   string   `json:"id"`
	DisplayName          string   `json:"displayName"`
	Description          string   `json:"description,omitempty"`
	Category             string   `json:"category"`
	Version              string   `json:"version"`
	TaskType             string   `json:"taskType"`
	ImplementationStatus string   `json:"implementationStatus"`
	ErrorCodes           []string `json:"errorCodes"`
	Timeout              string   `json:"timeout,omitempty"`
	Retries              int      `json:"retries"`
	Workflows            []string `json:"workflows,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
}
