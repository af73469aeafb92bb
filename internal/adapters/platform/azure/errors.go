package azure

import (
	"context"
	stderrs "errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/olusolaa/vm-reconciler/internal/errors"
)

// handleARMError maps an ARM SDK error to an application error code.
func handleARMError(ctx context.Context, operation, name string, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.CodePlatformAPIError,
			fmt.Sprintf("context canceled during %s of virtual machine '%s'", operation, name))
	}

	var respErr *azcore.ResponseError
	if !stderrs.As(err, &respErr) {
		return errors.Wrap(err, errors.CodePlatformAPIError,
			fmt.Sprintf("%s of virtual machine '%s' failed", operation, name))
	}

	switch {
	case respErr.StatusCode == http.StatusNotFound:
		return errors.Wrap(err, errors.CodeResourceNotFound,
			fmt.Sprintf("virtual machine '%s' not found", name))
	case respErr.StatusCode == http.StatusUnauthorized, respErr.StatusCode == http.StatusForbidden:
		return errors.Wrap(err, errors.CodePlatformAuthError,
			fmt.Sprintf("not authorized to %s virtual machine '%s'", operation, name))
	case respErr.StatusCode == http.StatusConflict, respErr.ErrorCode == "OperationNotAllowed":
		return errors.Wrap(err, errors.CodeInvalidState,
			fmt.Sprintf("virtual machine '%s' does not allow %s in its current state", name, operation))
	case respErr.StatusCode == http.StatusBadRequest && operation == opCreate:
		return errors.Wrap(err, errors.CodeCreationError,
			fmt.Sprintf("virtual machine '%s' was rejected by the platform", name))
	}
	return errors.Wrap(err, errors.CodePlatformAPIError,
		fmt.Sprintf("%s of virtual machine '%s' failed (%s)", operation, name, respErr.ErrorCode))
}
