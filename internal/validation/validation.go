// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В сообщениях об ошибках используются имена полей из JSON.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("coords", func(fl validator.FieldLevel) bool {
		coords, ok := fl.Field().Interface().([]float64)
		if !ok {
			return false
		}
		return Coordinates(coords) == nil
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})

	return v
}

// Struct проверяет структуру по тегам validate и возвращает читаемую ошибку.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Coordinates проверяет пару [долгота, широта]. Пустые координаты допустимы.
func Coordinates(coords []float64) error {
	if len(coords) == 0 {
		return nil
	}
	if len(coords) != 2 {
		return fmt.Errorf("coordinates must be [longitude, latitude], got %d values", len(coords))
	}
	lon, lat := coords[0], coords[1]
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	return nil
}

// IsValidPhone проверяет номер телефона: необязательный "+" и от 7 до 15 цифр.
func IsValidPhone(phone string) bool {
	phone = strings.TrimPrefix(phone, "+")
	if len(phone) < 7 || len(phone) > 15 {
		return false
	}

	for _, ch := range phone {
		if !unicode.IsDigit(ch) {
			return false
		}
	}

	return true
}
