package errors

type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeConfigValidation  Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError   Code = "CONFIG_READ_ERROR"
	CodeConfigParseError  Code = "CONFIG_PARSE_ERROR"
	CodePlatformAPIError  Code = "PLATFORM_API_ERROR"
	CodePlatformAuthError Code = "PLATFORM_AUTH_ERROR"
	CodeNotImplemented    Code = "NOT_IMPLEMENTED"

	// Reconciliation error kinds
	CodeRemoteFetchError  Code = "REMOTE_FETCH_ERROR"
	CodeResourceNotFound  Code = "RESOURCE_NOT_FOUND"
	CodeCreationError     Code = "CREATION_ERROR"
	CodeInvalidState      Code = "INVALID_STATE_ERROR"
	CodeImmutableProperty Code = "IMMUTABLE_PROPERTY_ERROR"
	CodeMappingError      Code = "MAPPING_ERROR"
	CodeReconcileFailed   Code = "RECONCILE_FAILED"

	// Manifest specific error codes
	CodeManifestReadError  Code = "MANIFEST_READ_ERROR"
	CodeManifestParseError Code = "MANIFEST_PARSE_ERROR"
	CodeManifestInvalid    Code = "MANIFEST_INVALID"
)

func (c Code) String() string {
	return string(c)
}
