package validator

import (
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const maxContentLength = 4000

// ValidateMessage checks a message before anything is persisted. Empty
// content is rejected here so no empty message is ever recorded.
func ValidateMessage(content, msgType string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(content) == "" {
		errs.Add("content", "Message content is required")
	} else if utf8.RuneCountInString(content) > maxContentLength {
		errs.Add("content", "Message content is too long")
	}

	if msgType != "" && msgType != "text" && msgType != "media" {
		errs.Add("type", "Message type must be text or media")
	}

	return errs
}

// ValidateAssistantPrompt checks a message addressed to the assistant.
func ValidateAssistantPrompt(message string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(message) == "" {
		errs.Add("message", "Message is required")
	} else if utf8.RuneCountInString(message) > maxContentLength {
		errs.Add("message", "Message is too long")
	}

	return errs
}
