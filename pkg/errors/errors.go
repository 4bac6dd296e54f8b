// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown       Code = "UNKNOWN"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeTimeout       Code = "TIMEOUT"
	CodeRateLimited   Code = "RATE_LIMITED"

	// 课表引擎相关
	CodeRestrictionConflict  Code = "RESTRICTION_CONFLICT"
	CodeUnplaceable          Code = "UNPLACEABLE"
	CodeUnresolvable         Code = "UNRESOLVABLE"
	CodeInvalidConfiguration Code = "INVALID_CONFIGURATION"
	CodeGenerationInProgress Code = "GENERATION_IN_PROGRESS"
	CodeActionNotApplicable  Code = "ACTION_NOT_APPLICABLE"

	// 数据相关
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail, CodeInvalidConfiguration:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeRestrictionConflict, CodeGenerationInProgress:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnplaceable, CodeUnresolvable, CodeActionNotApplicable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// RestrictionConflict 创建预约限制冲突错误
func RestrictionConflict(existingID, details string) *AppError {
	return New(CodeRestrictionConflict, fmt.Sprintf("与已有全局限制 %s 冲突: %s", existingID, details)).
		WithField("existing_id", existingID)
}

// Unplaceable 创建课时无法安排错误
func Unplaceable(session, reason string) *AppError {
	return New(CodeUnplaceable, fmt.Sprintf("课时 %s 无法安排: %s", session, reason))
}

// Unresolvable 创建冲突无法自动解决错误
func Unresolvable(conflictType, reason string) *AppError {
	return New(CodeUnresolvable, fmt.Sprintf("冲突 %s 无法自动解决: %s", conflictType, reason))
}

// GenerationInProgress 创建生成进行中错误
func GenerationInProgress(scope string) *AppError {
	return New(CodeGenerationInProgress, fmt.Sprintf("范围 %s 的课表正在生成中", scope))
}

// ValidationErrors 验证错误集合
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "验证失败"
	}
	return fmt.Sprintf("验证失败: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Add 添加验证错误
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors 检查是否有错误
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 转换为 AppError
func (ve *ValidationErrors) ToAppError() *AppError {
	return ve.toAppError(CodeValidationFail, "验证失败")
}

// ToConfigurationError 转换为配置不完整错误
func (ve *ValidationErrors) ToConfigurationError() *AppError {
	return ve.toAppError(CodeInvalidConfiguration, "课表配置不完整")
}

func (ve *ValidationErrors) toAppError(code Code, message string) *AppError {
	err := New(code, message)
	err.Fields = make(map[string]interface{})
	for _, e := range ve.Errors {
		err.Fields[e.Field] = e.Message
	}
	if len(ve.Errors) > 0 {
		err.Details = ve.Errors[0].Field + ": " + ve.Errors[0].Message
	}
	return err
}
