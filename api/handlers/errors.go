package handlers

import (
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mindhaven/crisis-api/config"
	"github.com/mindhaven/crisis-api/models"
)

// errorStatus maps pipeline errors to http statuses before delegating to the
// shared error writer. Bad input is 400, unknown ids are 404 and rejected
// state transitions are 409.
func errorStatus(message string, w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	var it *models.InvalidTransition
	switch {
	case errors.As(err, &ve):
		config.ErrorStatus(message, http.StatusBadRequest, w, err)
	case errors.As(err, &it):
		config.ErrorStatus(message, http.StatusConflict, w, err)
	case errors.Is(err, mongo.ErrNoDocuments):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}
