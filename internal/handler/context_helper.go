package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-discipline-api/internal/middleware"
	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

// requiredQuery returns a trimmed query value or a validation error naming it.
func requiredQuery(c *gin.Context, name string) (string, error) {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, name+" is required")
	}
	return value, nil
}

// semesterQuery parses the semester query parameter. Range checks happen in the service.
func semesterQuery(c *gin.Context) (int, error) {
	raw, err := requiredQuery(c, "semester")
	if err != nil {
		return 0, err
	}
	semester, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "semester must be 1 or 2")
	}
	return semester, nil
}
