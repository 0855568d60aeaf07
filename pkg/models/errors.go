package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the gateway
var (
	// ErrIntegrationNotFound is returned when no integration with the
	// requested name exists for the organization.
	ErrIntegrationNotFound = errors.New("integration not found")

	// ErrMissingOrganizationID is returned by the dispatcher when the
	// workflow variable bag carries no organization id. It must never be
	// silently defaulted.
	ErrMissingOrganizationID = errors.New("organizationId is required and missing from workflow variables")

	// ErrUnsupportedAuthMethod is returned for auth methods the vault
	// does not know how to resolve.
	ErrUnsupportedAuthMethod = errors.New("unsupported auth method")

	// ErrCustomerNotFound is returned by the customer lookup action when
	// no record matches the given id or email.
	ErrCustomerNotFound = errors.New("customer not found")
)

// CredentialError wraps a failure to decrypt or resolve an integration's
// credentials. Because decrypted credentials are shared across a batch,
// a CredentialError fails every operation in the batch uniformly.
type CredentialError struct {
	IntegrationName string
	Err             error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error for integration %q: %v", e.IntegrationName, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// OperationNotFoundError is returned when a requested operation is not in
// the integration's catalog. Valid carries every callable name so callers
// can discover what the integration supports.
type OperationNotFoundError struct {
	Operation string
	Valid     []string
}

func (e *OperationNotFoundError) Error() string {
	return fmt.Sprintf("unknown operation %q, supported operations: %s",
		e.Operation, strings.Join(e.Valid, ", "))
}
