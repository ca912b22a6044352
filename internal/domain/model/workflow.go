package model

import "time"

// StepSpec names one agent step inside a workflow. ID defaults to the agent
// type when left empty; Model may be a generic alias resolved per provider.
type StepSpec struct {
	ID        string        `yaml:"id" json:"id"`
	AgentType string        `yaml:"agent" json:"agent"`
	Model     string        `yaml:"model,omitempty" json:"model,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// StepID returns the effective step identifier.
func (s StepSpec) StepID() string {
	if s.ID != "" {
		return s.ID
	}
	return s.AgentType
}

// Workflow is a named, ordered step list from configuration.
type Workflow struct {
	Name  string     `yaml:"name" json:"name"`
	Steps []StepSpec `yaml:"steps" json:"steps"`
}
