/*
Package errors provides semantic error types for the catalog.

The package defines common error scenarios with specific types that can be
checked using the standard errors.Is() function or the provided helper functions.

Common Errors:

	var (
	    ErrNotFound            = errors.New("entity not found")
	    ErrAlreadyExists       = errors.New("entity already exists")
	    ErrInvalidInput        = errors.New("invalid input")
	    ErrConditionFailed     = errors.New("condition check failed")
	    ErrNoIndexMap          = errors.New("no index map found for type")
	    ErrUnauthorized        = errors.New("not authorized")
	    ErrCycleDetected       = errors.New("entity type cycle detected")
	    ErrUpstreamUnavailable = errors.New("upstream unavailable")
	)

Usage:

	entity, err := exec.GetEntity(ctx, scope, "123")
	if err != nil {
	    if errors.IsNotFound(err) {
	        // Absent and other-tenant ids look the same
	        return nil, fmt.Errorf("entity %s does not exist", "123")
	    }
	    return nil, err
	}

	// Create typed errors
	err := errors.NewNotFoundError("Entity", "123")
	err := errors.NewValidationError("sort.rate", "unknown sort key")
	err := errors.NewAuthorizationError(errors.ReasonTenantMismatch, "acme != globex")

The error types implement the error interface and support wrapping,
making them compatible with Go's standard error handling patterns.
*/
package errors
