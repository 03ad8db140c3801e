package core

import "github.com/palazero/v3tasks/pkg/models"

// TaskStore is the subset of storage.TaskStore that TaskGraphService needs.
// Defining it here keeps core independent of the storage package.
type TaskStore interface {
	Add(task models.Task) (models.Task, error)
	All() ([]models.Task, error)
	Remove(taskID string) error
	Apply(patches []models.TaskPatch) error
	Load() error
	Save() error
}
