package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		msgType string
		field   string // expected failing field, empty = valid
	}{
		{"valid text", "hello", "text", ""},
		{"valid media", "https://cdn.collabry.io/img.png", "media", ""},
		{"type defaults upstream", "hello", "", ""},
		{"empty content", "", "text", "content"},
		{"whitespace only", "   \n\t", "text", "content"},
		{"too long", strings.Repeat("a", 4001), "text", "content"},
		{"max length ok", strings.Repeat("a", 4000), "text", ""},
		{"bad type", "hello", "sticker", "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateMessage(tt.content, tt.msgType)
			if tt.field == "" {
				assert.False(t, errs.HasErrors(), "unexpected errors: %v", errs)
			} else {
				assert.Contains(t, errs, tt.field)
			}
		})
	}
}

func TestValidateAssistantPrompt(t *testing.T) {
	assert.False(t, ValidateAssistantPrompt("help me write a brief").HasErrors())
	assert.Contains(t, ValidateAssistantPrompt(""), "message")
	assert.Contains(t, ValidateAssistantPrompt(strings.Repeat("x", 4001)), "message")
}
