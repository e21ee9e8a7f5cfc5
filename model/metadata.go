package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/siherrmann/legalrag/helper"
)

// Keys of the metadata every indexed chunk carries.
const (
	MetadataSource = "source"
	MetadataPage   = "page"
)

// Metadata represents JSONB metadata stored in PostgreSQL
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal converts Metadata to JSON bytes
func (m Metadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal converts JSON bytes, a JSON string or Metadata to Metadata
func (m *Metadata) Unmarshal(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return helper.NewError("metadata assertion", errors.New("type assertion to []byte failed"))
	}
}

// Source returns the source path stored in the metadata.
func (m Metadata) Source() string {
	s, _ := m[MetadataSource].(string)
	return s
}

// Page returns the page ordinal stored in the metadata. Values decoded from
// JSON arrive as float64 and are converted.
func (m Metadata) Page() (int, error) {
	switch p := m[MetadataPage].(type) {
	case int:
		return p, nil
	case int64:
		return int(p), nil
	case float64:
		return int(p), nil
	case json.Number:
		i, err := p.Int64()
		return int(i), err
	case nil:
		return 0, helper.NewError("metadata page", errors.New("page not set"))
	default:
		return 0, helper.NewError("metadata page", fmt.Errorf("unexpected page type %T", p))
	}
}
