package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 错误分层（见各模块）：
//   - 训练期：TRAINING_DATA 致命，训练任务直接终止
//   - 启动期：MISSING_ARTIFACT 致命，工件不完整时服务拒绝启动
//   - 请求期：UNAVAILABLE 可恢复，可选信号源失效只降级不上抛
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "MISSING_ARTIFACT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "artifact", "mf"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil。
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误。
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound        = "NOT_FOUND"         // 资源不存在
	ErrorCodeNotSupported    = "NOT_SUPPORTED"     // 操作不支持
	ErrorCodeUnavailable     = "UNAVAILABLE"       // 服务不可用
	ErrorCodeInvalidInput    = "INVALID_INPUT"     // 输入无效
	ErrorCodeTrainingData    = "TRAINING_DATA"     // 离线训练输入不合法
	ErrorCodeMissingArtifact = "MISSING_ARTIFACT"  // 工件缺失或维度不一致
)

// 模块名称常量
const (
	ModuleStore    = "store"    // 存储模块
	ModuleArtifact = "artifact" // 工件模块
	ModuleMF       = "mf"       // 矩阵分解训练模块
	ModuleContext  = "context"  // 实时上下文模块
	ModuleModel    = "model"    // 排序模型模块
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND。
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED。
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE。
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsTrainingData 检查错误是否为训练输入错误（离线任务致命）。
func IsTrainingData(err error) bool { return hasCode(err, ErrorCodeTrainingData) }

// IsMissingArtifact 检查错误是否为工件完整性错误（启动期致命）。
func IsMissingArtifact(err error) bool { return hasCode(err, ErrorCodeMissingArtifact) }
