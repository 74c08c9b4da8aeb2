package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityEmail(t *testing.T) {
	t.Run("Success - Plus Tag Dropped", func(t *testing.T) {
		assert.Equal(t, "jane.doe@example.com", IdentityEmail(" Jane.Doe+linkedin@Example.com "))
	})

	t.Run("Success - Display Name Address", func(t *testing.T) {
		assert.Equal(t, "jane@example.com", IdentityEmail(`"Jane Doe" <Jane@example.com>`))
	})

	t.Run("Success - Mailto Link", func(t *testing.T) {
		assert.Equal(t, "recruiter@acme.io", IdentityEmail("mailto:recruiter@acme.io"))
	})

	t.Run("Fail - Not An Address", func(t *testing.T) {
		assert.Empty(t, IdentityEmail("jane doe"))
		assert.Empty(t, IdentityEmail("@example.com"))
		assert.Empty(t, IdentityEmail("   "))
	})
}
