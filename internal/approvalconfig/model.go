package approvalconfig

import (
	"time"

	"gorm.io/datatypes"
)

// CallType 外部接口调用方式
type CallType string

const (
	CallTypeSync  CallType = "sync"
	CallTypeAsync CallType = "async"
)

// StageConfig 检查节点或执行节点配置
type StageConfig struct {
	IsOpen   bool     `json:"is_open"`
	URL      string   `json:"url"`
	CallType CallType `json:"call_type" binding:"required,oneof=sync async"`
}

// FieldItem 外部字段数据源
type FieldItem struct {
	Code string `json:"code" binding:"required"` // 飞书控件 id
	URL  string `json:"url" binding:"required"`
}

// FieldConfig 外部字段配置
type FieldConfig struct {
	IsOpen bool        `json:"is_open"`
	Data   []FieldItem `json:"data" binding:"dive"`
}

// RelationItem 控件 id 到下游字段名的映射
type RelationItem struct {
	Code   string `json:"code" binding:"required"`
	APIKey string `json:"api_key" binding:"required"`
}

// RelationConfig 字段关联配置
type RelationConfig struct {
	IsOpen bool           `json:"is_open"`
	Data   []RelationItem `json:"data" binding:"dive"`
}

// Routing 一个审批定义的完整路由配置
type Routing struct {
	ApprovalCode string         `json:"approval_code" binding:"required"`
	Name         string         `json:"name" binding:"required"`
	Check        StageConfig    `json:"check"`
	Execute      StageConfig    `json:"execute"`
	Field        FieldConfig    `json:"field"`
	Relation     RelationConfig `json:"relation"`
}

// FieldURL 返回控件对应的数据源地址，未配置时为空串
func (r *Routing) FieldURL(code string) string {
	for _, item := range r.Field.Data {
		if item.Code == code {
			return item.URL
		}
	}
	return ""
}

// Summary 配置列表项
type Summary struct {
	ApprovalCode string `json:"approval_code"`
	Name         string `json:"name"`
}

// Record tb_config 表
type Record struct {
	ID             int64                              `gorm:"primaryKey;autoIncrement"`
	ApprovalCode   string                             `gorm:"size:128;not null;uniqueIndex:uk_approval_code"`
	Name           string                             `gorm:"size:256;not null"`
	Check          datatypes.JSONType[StageConfig]    `gorm:"column:check"`
	Execute        datatypes.JSONType[StageConfig]    `gorm:"column:execute"`
	Field          datatypes.JSONType[FieldConfig]    `gorm:"column:field"`
	Relation       datatypes.JSONType[RelationConfig] `gorm:"column:relation"`
	CreateTime     time.Time                          `gorm:"autoCreateTime;index"`
	LastUpdateTime time.Time                          `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Record) TableName() string {
	return "tb_config"
}

func newRecord(r *Routing) *Record {
	return &Record{
		ApprovalCode: r.ApprovalCode,
		Name:         r.Name,
		Check:        datatypes.NewJSONType(r.Check),
		Execute:      datatypes.NewJSONType(r.Execute),
		Field:        datatypes.NewJSONType(r.Field),
		Relation:     datatypes.NewJSONType(r.Relation),
	}
}

// Routing 转换为业务结构
func (rec *Record) Routing() *Routing {
	return &Routing{
		ApprovalCode: rec.ApprovalCode,
		Name:         rec.Name,
		Check:        rec.Check.Data(),
		Execute:      rec.Execute.Data(),
		Field:        rec.Field.Data(),
		Relation:     rec.Relation.Data(),
	}
}
