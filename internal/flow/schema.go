package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"promptcraft/internal/datauri"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var (
	// ErrNoOutput 模型调用成功但没有返回可用的输出（null 输出不允许静默返回）
	ErrNoOutput = errors.New("flow returned no output")
	// ErrInvalidOutput 模型输出无法按输出 schema 解析
	ErrInvalidOutput = errors.New("model output does not match output schema")
)

var validate = newValidator()

// newValidator 注册 base64datauri 标签，按 datauri.Parse 的规则校验
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("base64datauri", func(fl validator.FieldLevel) bool {
		_, err := datauri.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// InputError 输入不满足输入 schema
type InputError struct {
	Flow string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %v", e.Flow, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// reflectSchema 根据结构体的 json / jsonschema 标签生成 JSON Schema
func reflectSchema(v any) json.RawMessage {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	data, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

// schemaName 返回类型名，作为结构化输出的名称
func schemaName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// validateInput 按 validate 标签校验输入
func validateInput(flowName string, in any) error {
	if err := validate.Struct(in); err != nil {
		return &InputError{Flow: flowName, Err: err}
	}
	return nil
}
