package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// SuccessResponse is the envelope every successful RPC reply uses.
type SuccessResponse struct {
	Data any `json:"data"`
}

func respondJSON(c *gin.Context, status int, data any) {
	c.JSON(status, SuccessResponse{Data: data})
}

func respondAPIError(c *gin.Context, err error) {
	apiErr := translateError(err)
	c.JSON(apiErr.HTTPStatus, apiErr)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, NewAPIError("ERROR", message, status))
}

// bindJSON decodes and validates the request body into obj, translating
// validator.ValidationErrors into a readable message field by field.
func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				field := strings.ToLower(fe.Field())
				switch fe.Tag() {
				case "required":
					msgs = append(msgs, fmt.Sprintf("%s is required", field))
				case "oneof":
					msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
				case "min":
					msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
				case "max":
					msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
				default:
					msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
				}
			}
			respondError(c, http.StatusBadRequest, strings.Join(msgs, "; "))
		} else {
			respondAPIError(c, errInvalidJSON)
		}
		return err
	}
	return nil
}

func getQueryInt64(c *gin.Context, name string, defaultValue int64) int64 {
	value := c.Query(name)
	if value == "" {
		return defaultValue
	}
	var n int64
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return defaultValue
	}
	return n
}
