package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/olusolaa/vm-reconciler/internal/errors"
)

// HandleAWSError maps an AWS SDK error to an application error code.
// resourceType: the AWS resource type (e.g. "EC2 instance")
// resourceID: the identifier for the resource
func HandleAWSError(ctx context.Context, resourceType string, resourceID string, err error) error {
	if err == nil {
		return errors.New(errors.CodeInternal, fmt.Sprintf("unexpected nil error in AWS error handler for %s", resourceType))
	}

	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.CodePlatformAPIError,
			fmt.Sprintf("context canceled during AWS %s API call", resourceType))
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.CodePlatformAPIError,
			fmt.Sprintf("context canceled during AWS %s API call", resourceType))
	}

	code := errorCode(err)
	errMsg := err.Error()

	switch {
	case isAuthError(code, errMsg):
		return errors.Wrap(err, errors.CodePlatformAuthError,
			fmt.Sprintf("AWS authentication error accessing %s %s", resourceType, resourceID))
	case isInvalidStateErrorCode(code):
		return errors.Wrap(err, errors.CodeInvalidState,
			fmt.Sprintf("%s '%s' is in a state that does not allow this operation", resourceType, resourceID))
	case isNotFoundError(code, errMsg):
		return errors.Wrap(err, errors.CodeResourceNotFound,
			fmt.Sprintf("%s '%s' not found", resourceType, resourceID))
	case isCreationErrorCode(code):
		return errors.Wrap(err, errors.CodeCreationError,
			fmt.Sprintf("%s '%s' was rejected by the platform", resourceType, resourceID))
	}

	return errors.Wrap(err, errors.CodePlatformAPIError,
		fmt.Sprintf("failed to access %s '%s'", resourceType, resourceID))
}

// errorCode extracts the API error code, or "" for transport errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if stderrs.As(err, &apiErr) && apiErr != nil {
		return apiErr.ErrorCode()
	}
	if coded, ok := err.(interface{ ErrorCode() string }); ok {
		return coded.ErrorCode()
	}
	return ""
}

func isAuthError(code, errMsg string) bool {
	switch code {
	case "AuthFailure", "UnauthorizedOperation", "AccessDenied", "AccessDeniedException":
		return true
	}
	return strings.Contains(errMsg, "AuthFailure") ||
		strings.Contains(errMsg, "UnauthorizedOperation") ||
		strings.Contains(errMsg, "AccessDenied")
}

func isNotFoundError(code, errMsg string) bool {
	switch code {
	case "InvalidInstanceID.NotFound",
		"InvalidInstanceID.Malformed",
		"ResourceNotFoundException",
		"NotFoundException":
		return true
	case "":
		return strings.Contains(errMsg, "NotFound") || strings.Contains(errMsg, "not found")
	}
	return false
}

func isInvalidStateErrorCode(code string) bool {
	switch code {
	case "IncorrectInstanceState", "IncorrectState", "OperationNotPermitted":
		return true
	}
	return false
}

// isCreationErrorCode matches errors RunInstances returns for requests that
// will never succeed as issued.
func isCreationErrorCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "InvalidParameter"),
		strings.HasPrefix(code, "InvalidAMIID."),
		strings.HasPrefix(code, "InvalidSubnetID."),
		strings.HasPrefix(code, "InvalidGroup."),
		strings.HasPrefix(code, "InvalidKeyPair."),
		strings.HasSuffix(code, "LimitExceeded"),
		code == "InsufficientInstanceCapacity",
		code == "Unsupported",
		code == "MissingParameter":
		return true
	}
	return false
}
