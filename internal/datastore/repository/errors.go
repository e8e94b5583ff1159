package repository

import "github.com/evmtrack/evmtrack/internal/errors"

// Sentinel errors for repository operations.
var (
	// ErrComponentNotFound indicates no component has the requested serial or id.
	ErrComponentNotFound = errors.NewStd("component not found")

	// ErrPairingNotFound indicates the requested pairing does not exist.
	ErrPairingNotFound = errors.NewStd("pairing not found")

	// ErrAllotmentNotFound indicates the requested allotment does not exist.
	ErrAllotmentNotFound = errors.NewStd("allotment not found")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.NewStd("user not found")

	// ErrDistrictNotFound indicates the requested district does not exist.
	ErrDistrictNotFound = errors.NewStd("district not found")

	// ErrLocalBodyNotFound indicates the requested local body does not exist.
	ErrLocalBodyNotFound = errors.NewStd("local body not found")

	// ErrWarehouseNotFound indicates the requested warehouse does not exist.
	ErrWarehouseNotFound = errors.NewStd("warehouse not found")

	// ErrPollingStationNotFound indicates no polling station has the number in the local body.
	ErrPollingStationNotFound = errors.NewStd("polling station not found")

	// ErrStaleState indicates a conditional update matched no rows because the
	// row changed after it was read.
	ErrStaleState = errors.NewStd("row changed concurrently")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)
