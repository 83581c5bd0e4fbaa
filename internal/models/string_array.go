package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringArray 以 JSON 文本存储的字符串列表（角色、权限范围）
type StringArray []string

// Value 用于数据库写入
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	payload, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

// Scan 用于数据库读取
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		return errors.New("unsupported string array column type")
	}
	if len(payload) == 0 {
		*a = StringArray{}
		return nil
	}
	var items []string
	if err := json.Unmarshal(payload, &items); err != nil {
		return err
	}
	*a = StringArray(items)
	return nil
}

// Contains 判断列表中是否包含指定项
func (a StringArray) Contains(item string) bool {
	for _, existing := range a {
		if existing == item {
			return true
		}
	}
	return false
}
