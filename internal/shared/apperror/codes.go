package apperror

const (
	// Fatal to the run: a collaborator is unreachable or misconfigured.
	CodeConnectionFailure = "CONNECTION_FAILURE"

	// Per-punch, non-fatal.
	CodeIdentityUnresolved = "IDENTITY_UNRESOLVED"
	CodeDuplicateDetected  = "DUPLICATE_DETECTED"
	CodeOrderViolation     = "ORDER_VIOLATION"
	CodeMutationFailure    = "MUTATION_FAILURE"

	CodeInternalError = "INTERNAL_ERROR"
)
