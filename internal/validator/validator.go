// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"fraudreview/internal/models"
	"fraudreview/internal/services"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notification_type", validateNotificationType)
		_ = v.RegisterValidation("transaction_status", validateTransactionStatus)
		_ = v.RegisterValidation("review_filter", validateReviewFilter)
		_ = v.RegisterValidation("sort_field", validateSortField)
		_ = v.RegisterValidation("sort_direction", validateSortDirection)
		_ = v.RegisterValidation("confidence", validateConfidence)
	}
}

func validateNotificationType(fl validator.FieldLevel) bool {
	switch models.NotificationType(fl.Field().String()) {
	case models.NotificationTypeCall, models.NotificationTypeEmail, models.NotificationTypeSMS:
		return true
	}
	return false
}

func validateTransactionStatus(fl validator.FieldLevel) bool {
	return models.TransactionStatus(fl.Field().String()).Valid()
}

func validateReviewFilter(fl validator.FieldLevel) bool {
	switch services.ReviewFilter(fl.Field().String()) {
	case services.FilterAll, services.FilterFlagged:
		return true
	}
	return false
}

func validateSortField(fl validator.FieldLevel) bool {
	switch services.SortField(fl.Field().String()) {
	case services.SortByDate, services.SortByMerchant, services.SortByAmount:
		return true
	}
	return false
}

func validateSortDirection(fl validator.FieldLevel) bool {
	switch services.SortDirection(fl.Field().String()) {
	case services.SortAsc, services.SortDesc:
		return true
	}
	return false
}

// validateConfidence accepts classifier scores in [0, 1].
func validateConfidence(fl validator.FieldLevel) bool {
	score := fl.Field().Float()
	return score >= 0 && score <= 1
}
