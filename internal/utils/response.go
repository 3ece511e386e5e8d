package utils

import "github.com/gofiber/fiber/v3"

// SuccessResponse wraps a payload in the service's standard success envelope
func SuccessResponse(c fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// ErrorResponse sends a failure envelope with the given status. Errors that
// carry their own status should be returned as *APIError and rendered by the
// app error handler instead.
func ErrorResponse(c fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// PaginatedResponse wraps one page of the run ledger with pagination metadata
func PaginatedResponse(c fiber.Ctx, data interface{}, page, pageSize, total int) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
			"pages":     (total + pageSize - 1) / pageSize,
		},
	})
}
