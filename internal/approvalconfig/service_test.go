package approvalconfig

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"larkticket/internal/lark"
)

type fakeProvider struct {
	subscribed   []string
	unsubscribed []string
	subscribeErr error
	approval     *lark.ApprovalDetail
}

func (f *fakeProvider) Subscribe(ctx context.Context, code string) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribed = append(f.subscribed, code)
	return nil
}

func (f *fakeProvider) Unsubscribe(ctx context.Context, code string) error {
	f.unsubscribed = append(f.unsubscribed, code)
	return nil
}

func (f *fakeProvider) GetApproval(ctx context.Context, code string) (*lark.ApprovalDetail, error) {
	if f.approval == nil {
		return nil, &lark.RemoteError{Op: "get_approval", Code: 1390001}
	}
	return f.approval, nil
}

func setupService(t *testing.T) (*Service, *fakeProvider) {
	t.Helper()
	dsn := fmt.Sprintf("file:approvalconfig_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))

	provider := &fakeProvider{}
	return NewService(NewStore(db), provider, zaptest.NewLogger(t)), provider
}

func sampleRouting(code string) *Routing {
	return &Routing{
		ApprovalCode: code,
		Name:         "上线审批",
		Check:        StageConfig{IsOpen: true, URL: "http://check.local/run", CallType: CallTypeSync},
		Execute:      StageConfig{IsOpen: false, URL: "", CallType: CallTypeAsync},
		Field: FieldConfig{IsOpen: true, Data: []FieldItem{
			{Code: "w1", URL: "http://field.local/hosts"},
		}},
		Relation: RelationConfig{IsOpen: true, Data: []RelationItem{
			{Code: "w1", APIKey: "host"},
		}},
	}
}

func TestServiceLifecycle(t *testing.T) {
	svc, provider := setupService(t)
	ctx := context.Background()

	want := sampleRouting("AC1")
	require.NoError(t, svc.Create(ctx, want))
	assert.Equal(t, []string{"AC1"}, provider.subscribed)

	got, err := svc.Get(ctx, "AC1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, svc.Delete(ctx, "AC1"))
	assert.Equal(t, []string{"AC1"}, provider.unsubscribed)

	_, err = svc.Get(ctx, "AC1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceCreateDuplicate(t *testing.T) {
	svc, provider := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, sampleRouting("AC1")))

	dup := sampleRouting("AC1")
	dup.Name = "另一个"
	err := svc.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Len(t, provider.subscribed, 1)

	got, err := svc.Get(ctx, "AC1")
	require.NoError(t, err)
	assert.Equal(t, "上线审批", got.Name)
}

func TestServiceCreateSubscribeFailure(t *testing.T) {
	svc, provider := setupService(t)
	ctx := context.Background()
	provider.subscribeErr = &lark.RemoteError{Op: "subscribe", Code: 1390002, Msg: "approval code not found"}

	err := svc.Create(ctx, sampleRouting("AC1"))
	var rerr *lark.RemoteError
	require.True(t, errors.As(err, &rerr))

	exists, err := svc.Store().Exists(ctx, "AC1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestServiceUpdate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	t.Run("不存在", func(t *testing.T) {
		err := svc.Update(ctx, sampleRouting("ACX"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("整体替换", func(t *testing.T) {
		require.NoError(t, svc.Create(ctx, sampleRouting("AC1")))

		next := sampleRouting("AC1")
		next.Name = "变更审批"
		next.Check = StageConfig{IsOpen: false, CallType: CallTypeAsync}
		next.Relation = RelationConfig{IsOpen: false, Data: []RelationItem{}}
		require.NoError(t, svc.Update(ctx, next))

		got, err := svc.Get(ctx, "AC1")
		require.NoError(t, err)
		assert.Equal(t, next, got)
	})
}

func TestServiceDeleteMissing(t *testing.T) {
	svc, provider := setupService(t)

	err := svc.Delete(context.Background(), "AC1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, provider.unsubscribed)
}

func TestServiceList(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, code := range []string{"AC2", "AC1", "AC3"} {
		require.NoError(t, svc.Create(ctx, sampleRouting(code)))
	}

	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "AC2", list[0].ApprovalCode)
	assert.Equal(t, "AC1", list[1].ApprovalCode)
	assert.Equal(t, "上线审批", list[2].Name)
}

func TestServiceApprovalFields(t *testing.T) {
	svc, provider := setupService(t)

	_, err := svc.ApprovalFields(context.Background(), "AC1")
	var rerr *lark.RemoteError
	assert.True(t, errors.As(err, &rerr))

	provider.approval = &lark.ApprovalDetail{Form: `[{"id":"w1","name":"主机","type":"input"},{"id":"w2","name":"原因","type":"textarea"}]`}
	options, err := svc.ApprovalFields(context.Background(), "AC1")
	require.NoError(t, err)
	assert.Equal(t, []FieldOption{{Label: "主机", Value: "w1"}, {Label: "原因", Value: "w2"}}, options)
}

func TestRoutingFieldURL(t *testing.T) {
	r := sampleRouting("AC1")
	assert.Equal(t, "http://field.local/hosts", r.FieldURL("w1"))
	assert.Equal(t, "", r.FieldURL("w9"))
}
