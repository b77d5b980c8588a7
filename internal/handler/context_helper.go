package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-allocation-api/internal/middleware"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
	"github.com/noah-isme/exam-allocation-api/pkg/response"
)

// actorFromContext resolves the caller or writes 401 and returns false.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
