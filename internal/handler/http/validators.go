package http

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/netless-io/flat-server-sub001/internal/pathmodel"
)

// RegisterValidators 向 gin 的校验器注册自定义规则:
// dirpath 规范化的目录路径，weekdays 取值 0..6 且不重复。
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return registerValidators(v)
}

func registerValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("dirpath", validateDirPath); err != nil {
		return fmt.Errorf("register dirpath: %w", err)
	}
	if err := v.RegisterValidation("weekdays", validateWeekdays); err != nil {
		return fmt.Errorf("register weekdays: %w", err)
	}
	return nil
}

func validateDirPath(fl validator.FieldLevel) bool {
	return pathmodel.IsNormalized(fl.Field().String())
}

func validateWeekdays(fl validator.FieldLevel) bool {
	weeks, ok := fl.Field().Interface().([]int)
	if !ok {
		return false
	}
	seen := make(map[int]bool, len(weeks))
	for _, w := range weeks {
		if w < 0 || w > 6 || seen[w] {
			return false
		}
		seen[w] = true
	}
	return true
}
