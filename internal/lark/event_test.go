package lark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	v1 := `{"ts":"1","uuid":"u","token":"tk1","type":"event_callback",
		"event":{"type":"approval_task","approval_code":"AC1","instance_code":"I1","status":"PENDING"}}`
	v2 := `{"schema":"2.0","header":{"event_id":"e","token":"tk2","event_type":"approval_task"},
		"event":{"approval_code":"AC1","instance_code":"I1","status":"PENDING"}}`

	t.Run("v1 与 v2 解析为同一类型", func(t *testing.T) {
		e1, err := ParseEvent([]byte(v1))
		require.NoError(t, err)
		e2, err := ParseEvent([]byte(v2))
		require.NoError(t, err)

		assert.Equal(t, "approval_task", e1.Normalize())
		assert.Equal(t, e1.Normalize(), e2.Normalize())
		assert.Equal(t, "approval_task", e2.Type)
	})

	t.Run("校验 token 按版本读取", func(t *testing.T) {
		e1, _ := ParseEvent([]byte(v1))
		e2, _ := ParseEvent([]byte(v2))
		assert.Equal(t, "tk1", e1.VerificationToken())
		assert.Equal(t, "tk2", e2.VerificationToken())
	})

	t.Run("v2 缺少 event_type", func(t *testing.T) {
		e, err := ParseEvent([]byte(`{"schema":"2.0","header":{"event_id":"e"},"event":{"type":"approval_task"}}`))
		require.NoError(t, err)
		assert.Equal(t, "", e.Normalize())
	})

	t.Run("v2 缺少 header", func(t *testing.T) {
		e, err := ParseEvent([]byte(`{"schema":"2.0"}`))
		require.NoError(t, err)
		assert.Equal(t, "", e.Normalize())
		assert.NotNil(t, e.Event)
	})
}

func TestHandshake(t *testing.T) {
	e, err := ParseEvent([]byte(`{"challenge":"c-1","token":"t","type":"url_verification"}`))
	require.NoError(t, err)
	assert.True(t, e.IsHandshake())
	assert.Equal(t, "c-1", e.Challenge)

	e, err = ParseEvent([]byte(`{"type":"event_callback","event":{}}`))
	require.NoError(t, err)
	assert.False(t, e.IsHandshake())
}

func TestEventString(t *testing.T) {
	e, err := ParseEvent([]byte(`{"event":{"approval_code":"AC1","open":true}}`))
	require.NoError(t, err)
	assert.Equal(t, "AC1", e.ApprovalCode())
	assert.Equal(t, "", e.EventString("open"))
	assert.Equal(t, "", e.EventString("missing"))
}
