package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/internal/visitor"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

func requestVisitor(r *http.Request) (*visitor.Visitor, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "visitor context missing")
	}
	v := visitor.FromContext(r.Context())
	if v == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "visitor context missing")
	}
	return v, nil
}
