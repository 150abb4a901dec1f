package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxQueryRunes bounds the length of a search query.
const MaxQueryRunes = 256

var (
	ErrEmptyQuery   = errors.New("empty query")
	ErrQueryTooLong = errors.New("query too long")
	ErrQueryInvalid = errors.New("query contains invalid characters")
)

// QueryError reports why a query was rejected.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	if errors.Is(e.Err, ErrEmptyQuery) {
		return "domain: " + e.Err.Error()
	}
	return fmt.Sprintf("domain: %v: %q", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }

// NormalizeQuery trims q and rejects blank, oversized or non-text queries
// before they reach the backend.
func NormalizeQuery(q string) (string, error) {
	if !utf8.ValidString(q) {
		return "", &QueryError{Query: strings.ToValidUTF8(q, "�"), Err: ErrQueryInvalid}
	}
	text := strings.TrimSpace(q)
	if text == "" {
		return "", &QueryError{Err: ErrEmptyQuery}
	}
	if utf8.RuneCountInString(text) > MaxQueryRunes {
		return "", &QueryError{Query: string([]rune(text)[:32]) + "…", Err: ErrQueryTooLong}
	}
	for _, r := range text {
		if unicode.IsControl(r) {
			return "", &QueryError{Query: text, Err: ErrQueryInvalid}
		}
	}
	return text, nil
}
