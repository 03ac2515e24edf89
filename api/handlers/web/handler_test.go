package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"larkticket/internal/approvalconfig"
	"larkticket/internal/lark"
)

type fakeProvider struct {
	subscribed   []string
	unsubscribed []string
}

func (f *fakeProvider) Subscribe(_ context.Context, code string) error {
	f.subscribed = append(f.subscribed, code)
	return nil
}

func (f *fakeProvider) Unsubscribe(_ context.Context, code string) error {
	f.unsubscribed = append(f.unsubscribed, code)
	return nil
}

func (f *fakeProvider) GetApproval(_ context.Context, code string) (*lark.ApprovalDetail, error) {
	return &lark.ApprovalDetail{
		ApprovalName: "上线审批",
		Form:         `[{"id":"w1","name":"主机","type":"input"},{"id":"w2","name":"端口","type":"number"}]`,
	}, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *fakeProvider) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:web_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, approvalconfig.AutoMigrate(db))

	provider := &fakeProvider{}
	h := NewHandler(approvalconfig.NewService(approvalconfig.NewStore(db), provider, zaptest.NewLogger(t)), zaptest.NewLogger(t))

	router := gin.New()
	g := router.Group("/api/v1/web")
	g.GET("/configs", h.ListConfigs)
	g.GET("/config/:approval_code", h.GetConfig)
	g.POST("/config", h.CreateConfig)
	g.PUT("/config", h.UpdateConfig)
	g.DELETE("/config/:approval_code", h.DeleteConfig)
	g.GET("/lark/approval/fields", h.ApprovalFields)
	return router, provider
}

func do(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func routingPayload(code, name string) map[string]any {
	return map[string]any{
		"approval_code": code,
		"name":          name,
		"check":         map[string]any{"is_open": true, "url": "http://checker/check", "call_type": "sync"},
		"execute":       map[string]any{"is_open": false, "url": "", "call_type": "async"},
		"field":         map[string]any{"is_open": true, "data": []any{map[string]any{"code": "w1", "url": "http://field/w1"}}},
		"relation":      map[string]any{"is_open": true, "data": []any{map[string]any{"code": "w1", "api_key": "host"}}},
	}
}

func TestConfigLifecycle(t *testing.T) {
	router, provider := setupRouter(t)
	payload := routingPayload("AC1", "上线审批")

	w := do(router, http.MethodPost, "/api/v1/web/config", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"retcode": float64(0), "msg": "success", "error": "", "resp": map[string]any{}}, decode(t, w))
	assert.Equal(t, []string{"AC1"}, provider.subscribed)

	w = do(router, http.MethodGet, "/api/v1/web/config/AC1", nil)
	body := decode(t, w)
	assert.Equal(t, float64(0), body["retcode"])
	want, _ := json.Marshal(payload)
	got, _ := json.Marshal(body["resp"])
	assert.JSONEq(t, string(want), string(got))

	w = do(router, http.MethodDelete, "/api/v1/web/config/AC1", nil)
	assert.Equal(t, float64(0), decode(t, w)["retcode"])
	assert.Equal(t, []string{"AC1"}, provider.unsubscribed)

	w = do(router, http.MethodGet, "/api/v1/web/config/AC1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(-1), body["retcode"])
	assert.Contains(t, body["error"], "does not exist")
}

func TestCreateConfig(t *testing.T) {
	t.Run("重复创建", func(t *testing.T) {
		router, provider := setupRouter(t)
		require.Equal(t, float64(0), decode(t, do(router, http.MethodPost, "/api/v1/web/config", routingPayload("AC1", "a")))["retcode"])

		body := decode(t, do(router, http.MethodPost, "/api/v1/web/config", routingPayload("AC1", "b")))
		assert.Equal(t, float64(-1), body["retcode"])
		assert.Len(t, provider.subscribed, 1)
	})

	t.Run("参数校验失败", func(t *testing.T) {
		router, provider := setupRouter(t)
		payload := routingPayload("AC1", "a")
		payload["check"] = map[string]any{"is_open": true, "call_type": "grpc"}

		w := do(router, http.MethodPost, "/api/v1/web/config", payload)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, float64(-1), decode(t, w)["retcode"])
		assert.Empty(t, provider.subscribed)
	})
}

func TestUpdateConfig(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPut, "/api/v1/web/config", routingPayload("AC1", "a"))
	assert.Equal(t, float64(-1), decode(t, w)["retcode"])

	do(router, http.MethodPost, "/api/v1/web/config", routingPayload("AC1", "a"))
	w = do(router, http.MethodPut, "/api/v1/web/config", routingPayload("AC1", "改名"))
	assert.Equal(t, float64(0), decode(t, w)["retcode"])

	resp := decode(t, do(router, http.MethodGet, "/api/v1/web/config/AC1", nil))["resp"].(map[string]any)
	assert.Equal(t, "改名", resp["name"])
}

func TestListConfigs(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/api/v1/web/configs", nil)
	assert.Equal(t, map[string]any{"body": []any{}}, decode(t, w)["resp"])

	do(router, http.MethodPost, "/api/v1/web/config", routingPayload("AC2", "第二个"))
	do(router, http.MethodPost, "/api/v1/web/config", routingPayload("AC1", "第一个"))

	w = do(router, http.MethodGet, "/api/v1/web/configs", nil)
	assert.Equal(t, map[string]any{"body": []any{
		map[string]any{"approval_code": "AC2", "name": "第二个"},
		map[string]any{"approval_code": "AC1", "name": "第一个"},
	}}, decode(t, w)["resp"])
}

func TestApprovalFields(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/api/v1/web/lark/approval/fields?approval_code=AC1", nil)
	assert.Equal(t, map[string]any{"body": []any{
		map[string]any{"label": "主机", "value": "w1"},
		map[string]any{"label": "端口", "value": "w2"},
	}}, decode(t, w)["resp"])

	w = do(router, http.MethodGet, "/api/v1/web/lark/approval/fields", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
