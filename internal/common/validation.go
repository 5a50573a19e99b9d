package common

import (
	"strings"
	"unicode/utf8"
)

const MaxMessageRunes = 4000

func ValidateMessageText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return NewInvalidInputError("message cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return NewInvalidInputError("message is too long")
	}
	return nil
}

func ValidateConsent(runID, suggestedUserID string) error {
	if strings.TrimSpace(runID) == "" {
		return NewInvalidInputError("run_id is required")
	}
	if strings.TrimSpace(suggestedUserID) == "" {
		return NewInvalidInputError("suggested_user_id is required")
	}
	return nil
}
