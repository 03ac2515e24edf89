package approvalconfig

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 审批定义配置不存在
	ErrNotFound = errors.New("approval config does not exist")
	// ErrAlreadyExists 审批定义配置已存在
	ErrAlreadyExists = errors.New("approval config already exists")
)

// Store tb_config 读写
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate 初始化表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Transaction 在事务中执行 fn，fn 返回错误时回滚
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Exists 配置是否存在
func (s *Store) Exists(ctx context.Context, approvalCode string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("approval_code = ?", approvalCode).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询配置失败: %w", err)
	}
	return count > 0, nil
}

// Get 按审批定义 code 查询
func (s *Store) Get(ctx context.Context, approvalCode string) (*Routing, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("approval_code = ?", approvalCode).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: approval_code %s", ErrNotFound, approvalCode)
	}
	if err != nil {
		return nil, fmt.Errorf("查询配置失败: %w", err)
	}
	return rec.Routing(), nil
}

// List 按创建时间返回全部配置
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	summaries := make([]Summary, 0)
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Select("approval_code", "name").
		Order("create_time ASC").
		Order("id ASC").
		Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("查询配置列表失败: %w", err)
	}
	return summaries, nil
}

// Create 新增配置，approval_code 已存在时返回 ErrAlreadyExists
func (s *Store) Create(ctx context.Context, r *Routing) error {
	exists, err := s.Exists(ctx, r.ApprovalCode)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: approval_code %s", ErrAlreadyExists, r.ApprovalCode)
	}
	if err := s.db.WithContext(ctx).Create(newRecord(r)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: approval_code %s", ErrAlreadyExists, r.ApprovalCode)
		}
		return fmt.Errorf("创建配置失败: %w", err)
	}
	return nil
}

// Update 整体替换名称与子配置
func (s *Store) Update(ctx context.Context, r *Routing) error {
	rec := newRecord(r)
	result := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("approval_code = ?", r.ApprovalCode).
		Updates(map[string]any{
			"name":     rec.Name,
			"check":    rec.Check,
			"execute":  rec.Execute,
			"field":    rec.Field,
			"relation": rec.Relation,
		})
	if result.Error != nil {
		return fmt.Errorf("更新配置失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		exists, err := s.Exists(ctx, r.ApprovalCode)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: approval_code %s", ErrNotFound, r.ApprovalCode)
		}
	}
	return nil
}

// Delete 物理删除配置
func (s *Store) Delete(ctx context.Context, approvalCode string) error {
	result := s.db.WithContext(ctx).
		Where("approval_code = ?", approvalCode).
		Delete(&Record{})
	if result.Error != nil {
		return fmt.Errorf("删除配置失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: approval_code %s", ErrNotFound, approvalCode)
	}
	return nil
}
