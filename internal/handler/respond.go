package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/service"
)

// sendSuccessResponse sends a success envelope
func sendSuccessResponse(w http.ResponseWriter, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	json.NewEncoder(w).Encode(model.APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// sendErrorResponse sends an error envelope
func sendErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(model.APIResponse{
		Status:  "error",
		Message: message,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// sendServiceError maps a service failure to an HTTP response. Internal
// causes are logged by the caller, never returned to clients.
func sendServiceError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)

	message := "internal server error"
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Message
		if len(svcErr.Fields) > 0 {
			message += ": " + strings.Join(svcErr.Fields, ", ")
		}
	}

	sendErrorResponse(w, errorCode(kind), message, httpStatus(kind))
}

func errorCode(kind service.Kind) string {
	switch kind {
	case service.KindValidation:
		return "ERR_VALIDATION"
	case service.KindRateLimited:
		return "ERR_RATE_LIMITED"
	case service.KindNotFound:
		return "ERR_NOT_FOUND"
	case service.KindTokenAcquisition:
		return "ERR_TOKEN_ACQUISITION"
	case service.KindProviderCall:
		return "ERR_PROVIDER_CALL"
	case service.KindMalformedCallback:
		return "ERR_MALFORMED_CALLBACK"
	default:
		return "ERR_INTERNAL_SERVER"
	}
}

func httpStatus(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindMalformedCallback:
		return http.StatusBadRequest
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
