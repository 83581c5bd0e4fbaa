package models

import "time"

// SignatureAuditLog 签名校验审计日志（只追加，请求路径不读取）
type SignatureAuditLog struct {
	ID          uint      `gorm:"primarykey" json:"id"`                          // 主键
	Method      string    `gorm:"type:varchar(16);not null" json:"method"`       // 归因方式
	Fingerprint string    `gorm:"type:varchar(64);default:''" json:"fingerprint"` // 载荷指纹（截断哈希，不存原文）
	Outcome     string    `gorm:"type:varchar(16);not null;index" json:"outcome"` // 校验结果
	ClientIP    string    `gorm:"type:varchar(64);default:''" json:"client_ip"`  // 客户端 IP
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                       // 创建时间
}

// TableName 指定表名
func (SignatureAuditLog) TableName() string {
	return "signature_audit_logs"
}
