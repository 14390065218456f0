package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	// MaxPage keeps Offset within int32 range for every allowed limit
	MaxPage = math.MaxInt32/MaxPageLimit + 1
)

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// ErrorResponse writes the {success:false, error} envelope. Keys in extra
// are merged into the body.
func ErrorResponse(c *fiber.Ctx, status int, message string, extra fiber.Map) error {
	body := fiber.Map{"success": false, "error": message}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// SuccessResponse writes the {success, message, data} envelope
func SuccessResponse(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// ParseID reads a positive numeric route parameter
func ParseID(c *fiber.Ctx, param string) (uint, error) {
	id := ParseUint(c.Params(param))
	if id == 0 {
		return 0, NewValidationError("Invalid %s", param)
	}
	return id, nil
}

// ParseOptionalUint reads a numeric query value, nil when absent or malformed
func ParseOptionalUint(c *fiber.Ctx, key string) *uint {
	v := ParseUint(c.Query(key))
	if v == 0 {
		return nil
	}
	return &v
}

// Pagination is the page window requested by a list endpoint
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParsePagination reads page/limit query params with defaults and an upper bound
func ParsePagination(c *fiber.Ctx) Pagination {
	return NewPagination(c.QueryInt("page", 1), c.QueryInt("limit", DefaultPageLimit))
}

func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// PageMeta is serialized under "pagination" in list responses
type PageMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination PageMeta    `json:"pagination"`
}

func NewPaginatedResponse(data interface{}, total int64, p Pagination) PaginatedResponse {
	return PaginatedResponse{
		Data:       data,
		Pagination: PageMeta{Total: total, Page: p.Page, Limit: p.Limit},
	}
}

// Sort is a validated ORDER BY clause
type Sort struct {
	Column string
	Desc   bool
}

func (s Sort) Clause() string {
	if s.Desc {
		return s.Column + " DESC"
	}
	return s.Column + " ASC"
}

// ParseSort validates sortBy against the allowed columns. Unknown columns
// fall back to def; sortOrder defaults to DESC.
func ParseSort(sortBy, sortOrder string, allowed []string, def string) Sort {
	column := def
	for _, a := range allowed {
		if a == sortBy {
			column = a
			break
		}
	}
	return Sort{Column: column, Desc: !strings.EqualFold(sortOrder, "ASC")}
}

// BulkSummary counts the per-item outcome of a bulk operation
type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BulkItemError describes one failed item of a bulk operation
type BulkItemError struct {
	Index int    `json:"index"`
	ID    uint   `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Error string `json:"error"`
}

// BulkStatus picks the HTTP status for a bulk result: 207 when both
// successes and failures happened, okStatus when nothing failed, 400 when
// every item failed.
func BulkStatus(summary BulkSummary, okStatus int) int {
	switch {
	case summary.Failed == 0:
		return okStatus
	case summary.Successful == 0:
		return fiber.StatusBadRequest
	}
	return fiber.StatusMultiStatus
}
