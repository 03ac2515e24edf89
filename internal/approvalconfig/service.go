package approvalconfig

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"larkticket/internal/lark"
)

// Provider 配置变更时需要调用的飞书接口
type Provider interface {
	Subscribe(ctx context.Context, approvalCode string) error
	Unsubscribe(ctx context.Context, approvalCode string) error
	GetApproval(ctx context.Context, approvalCode string) (*lark.ApprovalDetail, error)
}

// FieldOption 审批定义控件选项
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Service 审批定义配置管理
type Service struct {
	store    *Store
	provider Provider
	logger   *zap.Logger
}

// NewService 创建 Service 实例
func NewService(store *Store, provider Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, provider: provider, logger: logger}
}

// Store 底层存储
func (s *Service) Store() *Store {
	return s.store
}

// List 全部配置的 code 与名称
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	return s.store.List(ctx)
}

// Get 查询单个配置
func (s *Service) Get(ctx context.Context, approvalCode string) (*Routing, error) {
	return s.store.Get(ctx, approvalCode)
}

// Create 写入配置并订阅审批事件，订阅失败则回滚
func (s *Service) Create(ctx context.Context, r *Routing) error {
	err := s.store.Transaction(ctx, func(tx *Store) error {
		if err := tx.Create(ctx, r); err != nil {
			return err
		}
		if err := s.provider.Subscribe(ctx, r.ApprovalCode); err != nil {
			return fmt.Errorf("订阅审批事件失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("审批配置已创建", zap.String("approval_code", r.ApprovalCode))
	return nil
}

// Update 整体替换配置，不涉及订阅
func (s *Service) Update(ctx context.Context, r *Routing) error {
	if err := s.store.Update(ctx, r); err != nil {
		return err
	}
	s.logger.Info("审批配置已更新", zap.String("approval_code", r.ApprovalCode))
	return nil
}

// Delete 删除配置并取消订阅，取消失败则回滚
func (s *Service) Delete(ctx context.Context, approvalCode string) error {
	err := s.store.Transaction(ctx, func(tx *Store) error {
		if err := tx.Delete(ctx, approvalCode); err != nil {
			return err
		}
		if err := s.provider.Unsubscribe(ctx, approvalCode); err != nil {
			return fmt.Errorf("取消订阅审批事件失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("审批配置已删除", zap.String("approval_code", approvalCode))
	return nil
}

// ApprovalFields 读取飞书审批定义的表单控件
func (s *Service) ApprovalFields(ctx context.Context, approvalCode string) ([]FieldOption, error) {
	detail, err := s.provider.GetApproval(ctx, approvalCode)
	if err != nil {
		return nil, err
	}
	fields, err := detail.FormFields()
	if err != nil {
		return nil, err
	}
	options := make([]FieldOption, 0, len(fields))
	for _, f := range fields {
		options = append(options, FieldOption{Label: f.Name, Value: f.ID})
	}
	return options, nil
}
