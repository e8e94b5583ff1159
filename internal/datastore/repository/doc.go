// Package repository provides repository interfaces and GORM implementations
// for the custody schema. Repositories translate gorm.ErrRecordNotFound into
// the sentinel errors in errors.go so callers never depend on GORM errors.
package repository
