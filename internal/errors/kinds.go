package errors

import "fmt"

// Constructors for the custody error kinds. The component is passed explicitly
// because these are called from shared helpers where stack detection would
// report the helper instead of the workflow.

// NotFound reports a referenced serial, id, user or directory entry that does not exist.
func NotFound(component, format string, args ...any) *EnhancedError {
	return Newf(format, args...).Component(component).Category(CategoryNotFound).Build()
}

// WrongType reports a component whose type tag does not match the expected role.
func WrongType(component, serial, expected, actual string) *EnhancedError {
	return Newf("component %s is %s, expected %s", serial, actual, expected).
		Component(component).
		Category(CategoryWrongType).
		Context("serial", serial).
		Context("expected_type", expected).
		Context("actual_type", actual).
		Build()
}

// NotOwner reports a caller that does not currently hold the component.
func NotOwner(component, serial string, userID uint) *EnhancedError {
	return Newf("component %s is not held by user %d", serial, userID).
		Component(component).
		Category(CategoryNotOwner).
		Context("serial", serial).
		Context("user_id", userID).
		Build()
}

// NotAvailable reports a component whose status excludes the requested transition.
func NotAvailable(component, serial, status string) *EnhancedError {
	return Newf("component %s is not available (status %s)", serial, status).
		Component(component).
		Category(CategoryNotAvailable).
		Context("serial", serial).
		Context("status", status).
		Build()
}

// AlreadyInState reports an idempotent re-application of a terminal transition.
func AlreadyInState(component, serial, status string) *EnhancedError {
	return Newf("component %s is already %s", serial, status).
		Component(component).
		Category(CategoryAlreadyInState).
		Context("serial", serial).
		Context("status", status).
		Build()
}

// InvalidState reports an operation on an allotment or pairing in a terminal or
// conflicting state.
func InvalidState(component, format string, args ...any) *EnhancedError {
	return Newf(format, args...).Component(component).Category(CategoryInvalidState).Build()
}

// Database wraps a persistence failure.
func Database(component, operation string, err error) *EnhancedError {
	return New(fmt.Errorf("%s: %w", operation, err)).
		Component(component).
		Category(CategoryDatabase).
		Context("operation", operation).
		Build()
}

// Renderer wraps a report generation failure.
func Renderer(component, document string, err error) *EnhancedError {
	return New(fmt.Errorf("render %s: %w", document, err)).
		Component(component).
		Category(CategoryRenderer).
		Context("document", document).
		Build()
}
