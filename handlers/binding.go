package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"confique/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	msgFieldRequired   = "is required"
	msgInvalidFormat   = "has an invalid format"
	msgBelowMinLen     = "is too short"
	msgExceedsMaxLen   = "is too long"
	msgBelowMinVal     = "is below the minimum value"
	msgExceedsMaxVal   = "exceeds the maximum value"
	msgInvalidChoice   = "is not an allowed value"
	msgInvalidPostType = "must be one of confession, event, culturalEvent, news, showcase"
	msgUnknownRule     = "is invalid"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator
// and reports JSON field names in validation errors.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("objectid", validateObjectID)
		_ = v.RegisterValidation("posttype", validatePostType)
	})
}

func validateObjectID(fl validator.FieldLevel) bool {
	return primitive.IsValidObjectID(fl.Field().String())
}

func validatePostType(fl validator.FieldLevel) bool {
	return models.PostType(fl.Field().String()).Valid()
}

// bindJSON decodes the body into obj and writes the 400 response on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		bindError(c, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		bindError(c, err)
		return false
	}
	return true
}

func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": fieldMessages(verrs)})
}

func fieldMessages(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if _, seen := fields[name]; !seen {
			fields[name] = tagMessage(fe)
		}
	}
	return fields
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgFieldRequired
	case "email", "url", "objectid":
		return msgInvalidFormat
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return msgBelowMinLen
		}
		return msgBelowMinVal
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return msgExceedsMaxLen
		}
		return msgExceedsMaxVal
	case "gt", "gte":
		return msgBelowMinVal
	case "lt", "lte":
		return msgExceedsMaxVal
	case "oneof":
		return msgInvalidChoice
	case "posttype":
		return msgInvalidPostType
	default:
		return msgUnknownRule
	}
}
