package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Document 是上游返回的原始 JSON 对象，仅解析其 id 字段用于定位。
type Document struct {
	ID  string
	Raw json.RawMessage
}

// ObjectID 使 Document 满足 localdata.Object[string]。
func (d Document) ObjectID() string {
	return d.ID
}

// MarshalJSON 原样输出上游内容，保证落盘与回传时字段不丢失。
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

// UnmarshalJSON 保存原始字节，并要求对象携带字符串或数字形式的 id。
func (d *Document) UnmarshalJSON(data []byte) error {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("document must be a JSON object: %w", err)
	}
	id, err := parseID(probe.ID)
	if err != nil {
		return err
	}
	d.ID = id
	d.Raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// ParseDocument 解析单个对象，常用于 PUT 请求体。
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("document is missing an id")
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("invalid document id: %w", err)
		}
		if id == "" {
			return "", errors.New("document id is empty")
		}
		return id, nil
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return "", fmt.Errorf("document id must be a string or number, got %s", raw)
	}
	return string(raw), nil
}
