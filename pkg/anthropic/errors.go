package anthropic

import (
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// StatusCode returns the HTTP status of an API error anywhere in err's
// chain, or 0 when err did not come from an API response.
func StatusCode(err error) int {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
