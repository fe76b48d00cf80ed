package model

import (
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("gen")
	assert.True(t, strings.HasPrefix(id, "gen_"))
	assert.Len(t, id, len("gen_")+36)
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("gen"))
}

func TestGenerationJob_Terminal(t *testing.T) {
	assert.False(t, (&GenerationJob{Status: JobPending}).Terminal())
	assert.True(t, (&GenerationJob{Status: JobSucceeded}).Terminal())
	assert.True(t, (&GenerationJob{Status: JobFailed}).Terminal())
}

func TestHTTPURL(t *testing.T) {
	for _, valid := range []string{"", "https://example.com/a.jpg", "http://localhost:8080/x?y=1"} {
		assert.NoError(t, validation.Validate(valid, HTTPURL), valid)
	}
	for _, invalid := range []string{"a.jpg", "not a url", "ftp://example.com/a.jpg", "https://", "//example.com/a.jpg"} {
		assert.ErrorContains(t, validation.Validate(invalid, HTTPURL), "http(s) url", invalid)
	}
}
