package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("boom")).Build()
	assert.Equal(t, "boom", ee.Error())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderInheritsWrappedCategory(t *testing.T) {
	t.Parallel()

	inner := NotFound("registry", "component %s not found", "CU001")
	outer := New(fmt.Errorf("lookup: %w", inner)).Component("allotment").Build()

	assert.Equal(t, CategoryNotFound, outer.Category)
	assert.Equal(t, "allotment", outer.GetComponent())
	assert.True(t, IsNotFound(outer))
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("x"), CategoryGeneric},
		{"wrong type", WrongType("flc", "BU1", "CU", "BU"), CategoryWrongType},
		{"not owner", NotOwner("allotment", "CU1", 7), CategoryNotOwner},
		{"not available", NotAvailable("allotment", "CU1", "polled"), CategoryNotAvailable},
		{"already", AlreadyInState("registry", "CU1", "damaged"), CategoryAlreadyInState},
		{"invalid state", InvalidState("allotment", "allotment %d is approved", 3), CategoryInvalidState},
		{"batch", NewBatch("register").addAndReturn("row 1: bad"), CategoryValidationBatch},
		{"wrapped batch", fmt.Errorf("ctx: %w", NewBatch("flc").addAndReturn("x")), CategoryValidationBatch},
		{"renderer", Renderer("report", "annexure-1", fmt.Errorf("font")), CategoryRenderer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestBatchError(t *testing.T) {
	t.Parallel()

	b := NewBatch("register components")
	require.NoError(t, b.OrNil())

	b.AddRow(2, "serial %q already registered", "CU002")
	b.Add("serial %q duplicated in batch", "CU003")

	err := b.OrNil()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 rows failed validation")
	assert.Equal(t, []string{`row 2: serial "CU002" already registered`, `serial "CU003" duplicated in batch`}, BatchMessages(err))
	assert.Nil(t, BatchMessages(fmt.Errorf("plain")))
}

func TestContextIsCopied(t *testing.T) {
	t.Parallel()

	ee := NotAvailable("allotment", "CU9", "counted")
	ctx := ee.GetContext()
	ctx["serial"] = "changed"
	assert.Equal(t, "CU9", ee.GetContext()["serial"])
}

func (b *BatchError) addAndReturn(msg string) *BatchError {
	b.Add("%s", msg)
	return b
}
