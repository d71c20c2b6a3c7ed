package viewmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToast_ExpiresAfterDuration(t *testing.T) {
	toast := Toast{duration: testOpts.ToastDuration}

	cmd := toast.Show(ToastSuccess, "saved")
	assert.True(t, toast.Visible())
	assert.Equal(t, "saved", toast.Message)

	msg := cmd()
	require.IsType(t, ToastExpiredMsg{}, msg)
	assert.True(t, toast.Update(msg))
	assert.False(t, toast.Visible())
}

func TestToast_NewerMessageSurvivesOldTimer(t *testing.T) {
	toast := Toast{duration: testOpts.ToastDuration}

	first := toast.Show(ToastSuccess, "first")
	second := toast.Show(ToastError, "second")

	toast.Update(first())
	assert.True(t, toast.Visible())
	assert.Equal(t, "second", toast.Message)
	assert.Equal(t, ToastError, toast.Kind)

	toast.Update(second())
	assert.False(t, toast.Visible())
}

func TestToast_IgnoresOtherToasts(t *testing.T) {
	a := Toast{duration: testOpts.ToastDuration}
	b := Toast{duration: testOpts.ToastDuration}

	cmd := a.Show(ToastSuccess, "a")
	b.Show(ToastSuccess, "b")

	assert.False(t, b.Update(cmd()))
	assert.True(t, b.Visible())
	assert.False(t, b.Update("unrelated"))
}

func TestToast_Dismiss(t *testing.T) {
	toast := Toast{duration: testOpts.ToastDuration}
	cmd := toast.Show(ToastSuccess, "x")
	toast.Dismiss()
	assert.False(t, toast.Visible())

	toast.Show(ToastSuccess, "y")
	toast.Update(cmd())
	assert.True(t, toast.Visible())
}
