package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	buyerIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	phonePattern     = regexp.MustCompile(`^[0-9+()\-.\s]{7,20}$`)
	whitespace       = regexp.MustCompile(`\s+`)
	markupCharacters = regexp.MustCompile(`[<>\"'&]`)
)

// ValidateTabID parses a tab id from a route parameter
func ValidateTabID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("tab id must be a positive integer")
	}
	return id, nil
}

// ValidateWindowID rejects window ids the host would never hand out
func ValidateWindowID(id int) error {
	if id <= 0 {
		return fmt.Errorf("window id must be a positive integer")
	}
	return nil
}

// ValidateBuyerID accepts generated UUIDs and the short ids of imported directories
func ValidateBuyerID(id string) error {
	if _, err := uuid.Parse(id); err == nil {
		return nil
	}
	if !buyerIDPattern.MatchString(id) {
		return fmt.Errorf("buyer id contains invalid characters")
	}
	return nil
}

// ValidateBuyerName validates and normalizes a buyer or company name
func ValidateBuyerName(name string) (string, error) {
	name = strings.TrimSpace(whitespace.ReplaceAllString(name, " "))
	name = markupCharacters.ReplaceAllString(name, "")

	if len(name) < 1 || len(name) > 100 {
		return "", fmt.Errorf("name must be between 1 and 100 characters")
	}
	return name, nil
}

// ValidateEmail accepts an empty address or a single well-formed one
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email address is invalid")
	}
	return nil
}

// ValidatePhone accepts an empty number or common phone punctuation
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("phone number contains invalid characters")
	}
	return nil
}

// ValidateRating keeps ratings on the five-star scale
func ValidateRating(rating float64) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5")
	}
	return nil
}

// ValidateMessage normalizes a free-text note sent with a bid request
func ValidateMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if len(message) > 1000 {
		return "", fmt.Errorf("message must be at most 1000 characters")
	}
	return message, nil
}
