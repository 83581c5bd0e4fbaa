package repository

import "gorm.io/gorm"

// 仓储层兜底上限，防止绕过接口层归一化的内部调用拉全表。
const maxQueryPageSize = 500

// applyPagination 应用分页参数，统一处理非法页码与偏移量。
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxQueryPageSize {
		pageSize = maxQueryPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
