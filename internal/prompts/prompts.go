// Package prompts defines the user-facing side effects the cart and checkout
// services need (confirmation, notices, dialogs, navigation) without tying
// them to a rendering surface.
package prompts

import "context"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notice is a non-blocking toast.
type Notice struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Dialog is an informational modal the shopper acknowledges.
type Dialog struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Prompt asks the shopper to confirm a destructive action.
type Prompt struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

type Route string

const (
	RouteOrderHistory Route = "/orders"
	RouteLogin        Route = "/login"
)

type Section string

const SectionAddress Section = "address"

// Confirmer blocks until the shopper accepts or declines.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (bool, error)
}

// Notifier surfaces a notice.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// Informer shows an informational dialog.
type Informer interface {
	Inform(ctx context.Context, dialog Dialog)
}

// Navigator moves the shopper to another view or section of the current one.
type Navigator interface {
	Navigate(ctx context.Context, route Route)
	Focus(ctx context.Context, section Section)
}

// UI bundles every port.
type UI interface {
	Confirmer
	Notifier
	Informer
	Navigator
}

// Error is shorthand for an error notice.
func Error(message string) Notice {
	return Notice{Severity: SeverityError, Message: message}
}

// Info is shorthand for an informational notice.
func Info(message string) Notice {
	return Notice{Severity: SeverityInfo, Message: message}
}

// Success is shorthand for a success notice.
func Success(message string) Notice {
	return Notice{Severity: SeveritySuccess, Message: message}
}
