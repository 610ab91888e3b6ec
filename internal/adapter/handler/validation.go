package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/momoworks/momo-ops/internal/apperr"
)

// FromBindError turns a gin binding error into a field -> message map keyed
// by the json names of dst's fields.
func FromBindError(err error, dst any) map[string]string {
	out := map[string]string{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fieldKey(dst, fe.StructField())] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	out["_"] = "malformed request body"
	return out
}

func bindError(err error, dst any) error {
	return apperr.InvalidErr("validation failed", FromBindError(err, dst))
}

func fieldKey(dst any, structField string) string {
	t := reflect.TypeOf(dst)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return strings.ToLower(structField)
	}

	f, ok := t.FieldByName(structField)
	if !ok {
		return strings.ToLower(structField)
	}
	tag := f.Tag.Get("json")
	if i := strings.Index(tag, ","); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" || tag == "-" {
		return strings.ToLower(structField)
	}
	return tag
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + param
	case "dive":
		return "is invalid"
	default:
		return "is invalid"
	}
}
