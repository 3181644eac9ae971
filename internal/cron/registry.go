package cron

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Job is a unit of maintenance work executed once per cron cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// TimeoutJob lets a job bound its own run. Jobs without it use the service default.
type TimeoutJob interface {
	Job
	Timeout() time.Duration
}

// Registry holds jobs by name and preserves registration order.
type Registry struct {
	order []string
	jobs  map[string]Job
}

// NewRegistry builds a registry from jobs, rejecting blank or duplicate names.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{jobs: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds job. Nil jobs are ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name is required")
	}
	if r.jobs == nil {
		r.jobs = map[string]Job{}
	}
	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.jobs[name] = job
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the job registered under name.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.jobs[name]
	return job, ok
}

// Names lists job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		jobs = append(jobs, r.jobs[name])
	}
	return jobs
}
