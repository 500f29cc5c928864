package util

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// ValidateUsername accepts 3-20 letters, digits or underscores.
func ValidateUsername(name string) error {
	if !usernameRe.MatchString(name) {
		return fmt.Errorf("username must be 3-20 letters, digits or underscores")
	}
	return nil
}

// ValidatePassword requires 8-32 characters with upper, lower and digit.
func ValidatePassword(pwd string) error {
	if len(pwd) < 8 || len(pwd) > 32 {
		return fmt.Errorf("password must be 8-32 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, ch := range pwd {
		switch {
		case ch >= 'A' && ch <= 'Z':
			hasUpper = true
		case ch >= 'a' && ch <= 'z':
			hasLower = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password needs an upper case letter, a lower case letter and a digit")
	}
	return nil
}

// ValidateTitle checks a goal title: non-blank, at most 64 characters.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is empty")
	}
	if utf8.RuneCountInString(title) > 64 {
		return fmt.Errorf("title too long, max 64 characters")
	}
	return nil
}

// ValidateLoanHours checks a requested loan size in whole hours.
func ValidateLoanHours(hours int64) error {
	if hours <= 0 {
		return fmt.Errorf("loan amount must be positive, got %d", hours)
	}
	if hours > 100000 {
		return fmt.Errorf("loan amount too large, got %d", hours)
	}
	return nil
}
