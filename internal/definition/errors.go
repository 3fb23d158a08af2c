package definition

import "errors"

// Sentinel errors for definition loading and validation. All of them are
// non-retryable: the definition file must be fixed before it can be used.
var (
	// ErrMalformed indicates the document violates the definition schema:
	// unparseable YAML, a missing name, a phase or step without an id, or a
	// verification spec without a kind.
	ErrMalformed = errors.New("malformed definition")

	// ErrDuplicateStepID indicates two steps share an id. Step ids must be
	// unique across the whole definition because instance records key step
	// state by id.
	ErrDuplicateStepID = errors.New("duplicate step id")

	// ErrUnknownDependency indicates a dependency that does not resolve to a
	// step at or before the referencing step in global step order, either
	// because the id is undefined or because it points forward.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrCyclicDependency indicates the dependency graph contains a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrEmptyPhase indicates a phase with no steps.
	ErrEmptyPhase = errors.New("phase has no steps")

	// ErrDefinitionNotFound indicates the definition file does not exist at
	// the resolved path.
	ErrDefinitionNotFound = errors.New("definition not found")
)
