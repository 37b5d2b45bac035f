// package models defines the data model for the anime theme playlist generator
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
// The only persistent model is [Session]; everything else is transient per request.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle storage interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the store
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the store
	Delete(id string) error                    // Delete removes a model from the store by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}
