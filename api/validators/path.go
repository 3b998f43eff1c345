package validators

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

const maxPathParamLen = 128

// PathParam returns the trimmed route parameter or a validation error when
// it is empty.
func PathParam(r *http.Request, name string) (string, error) {
	value := SanitizeString(chi.URLParam(r, name), maxPathParamLen)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" is required").WithDetails(map[string]any{"field": name})
	}
	return value, nil
}
