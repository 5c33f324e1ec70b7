package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "vendor_base_url", ToSnakeCase("VendorBaseURL"))
	assert.Equal(t, "issuer", ToSnakeCase("Issuer"))
	assert.Equal(t, "session_id", ToSnakeCase("SessionID"))
}

func TestEqualFoldSpace(t *testing.T) {
	assert.True(t, EqualFoldSpace("Jane  Mary\tDOE", " jane mary doe "))
	assert.True(t, EqualFoldSpace("a b", "A B"))
	assert.False(t, EqualFoldSpace("a b", "c d"))
	assert.False(t, EqualFoldSpace("ab", "a b"))
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank(" \n\t"))
	assert.False(t, IsBlank(" x "))
}
