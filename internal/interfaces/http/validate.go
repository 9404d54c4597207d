package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/dto"
)

var validate = validator.New()

// BindAndValidate parsea el cuerpo en dst y lo valida. Un cuerpo vacío deja
// dst con sus valores por defecto.
func BindAndValidate(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "cuerpo inválido")
		}
	}
	return validate.Struct(dst)
}

// badRequest traduce el error de BindAndValidate a la respuesta 400.
func badRequest(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: verrs.Error()})
	}
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
