package utils

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	SearchPageSize = 5
	AdminPageSize  = 10
)

var (
	ErrInvalidPage = errors.New("invalid page number")
	ErrInvalidID   = errors.New("invalid id")
)

// MaxPage bounds page numbers so offsets cannot overflow.
const MaxPage = math.MaxInt32

// ParsePage reads a 1-indexed page number. Empty means page 1.
func ParsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxPage {
		return 0, ErrInvalidPage
	}
	return n, nil
}

func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// ParseID parses a positive integer path parameter.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// EscapeLike escapes the ILIKE wildcards so user input matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ContainsPattern builds a "%s%" substring pattern for ILIKE.
func ContainsPattern(s string) string {
	return "%" + EscapeLike(strings.TrimSpace(s)) + "%"
}
