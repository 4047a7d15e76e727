package serverutils

import (
	"errors"

	"github.com/OussamaSEBROU/the-senctuary/internal/document"
	"github.com/OussamaSEBROU/the-senctuary/internal/persistence"
	"github.com/OussamaSEBROU/the-senctuary/internal/session"
	"github.com/OussamaSEBROU/the-senctuary/internal/stream"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps domain sentinel errors onto HTTP statuses so
// controllers can just `return err`.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, session.ErrBusy):
			// A second send while streaming is an expected, guarded condition.
			status = fiber.StatusConflict
		case errors.Is(err, session.ErrNoActiveConversation),
			errors.Is(err, session.ErrConversationNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, document.ErrNotPDF):
			status = fiber.StatusUnsupportedMediaType
		case errors.Is(err, document.ErrDocumentTooLarge):
			status = fiber.StatusRequestEntityTooLarge
		case errors.Is(err, document.ErrEncodingFailed):
			status = fiber.StatusUnprocessableEntity
		case errors.Is(err, genai.ErrExtractionFailed),
			errors.Is(err, stream.ErrStreamInterrupted):
			status = fiber.StatusBadGateway
		case errors.Is(err, persistence.ErrStorageQuotaExceeded):
			status = fiber.StatusInsufficientStorage
		}

		return ctx.Status(status).JSON(ErrorResponse(err.Error()))
	}
}
