package response

// AppError 统一错误包装，承载业务码与原始错误
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// LogFields 返回结构化日志键值对
func (e *AppError) LogFields() []interface{} {
	return []interface{}{
		"code", e.Code,
		"message", e.Message,
		"error", e.Err,
	}
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
