package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"go.uber.org/zap/zaptest"

	"larkticket/internal/dispatch"
	"larkticket/internal/lark"
	"larkticket/internal/worker/tasks"
)

type fakeExecutor struct {
	called bool
	job    dispatch.Job
	retErr error
}

func (f *fakeExecutor) Execute(ctx context.Context, job dispatch.Job) error {
	f.called = true
	f.job = job
	return f.retErr
}

func TestLarkHandlerHandleTask_Success(t *testing.T) {
	exec := &fakeExecutor{}
	h := NewLarkHandler(exec, zaptest.NewLogger(t))
	payload, _ := json.Marshal(dispatch.Job{
		Kind:      tasks.KindCheckCallback,
		Result:    &dispatch.Result{TicketID: "AC1|I1|T1", Result: true},
		RequestID: "req-1",
	})
	task := asynq.NewTask(tasks.TypeCheckCallback, payload)
	if err := h.HandleTask(context.Background(), task); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !exec.called || exec.job.Result.TicketID != "AC1|I1|T1" || exec.job.RequestID != "req-1" {
		t.Fatalf("executor not invoked correctly: called=%v job=%+v", exec.called, exec.job)
	}
}

func TestLarkHandlerHandleTask_Event(t *testing.T) {
	exec := &fakeExecutor{}
	h := NewLarkHandler(exec, zaptest.NewLogger(t))
	ev := &lark.EventContext{Type: "approval_task", Event: map[string]any{"approval_code": "AC1"}}
	payload, _ := json.Marshal(dispatch.Job{Kind: ev.Type, Event: ev})
	task := asynq.NewTask(tasks.TypeApprovalTask, payload)
	if err := h.HandleTask(context.Background(), task); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if exec.job.Event == nil || exec.job.Event.ApprovalCode() != "AC1" {
		t.Fatalf("event not decoded: %+v", exec.job.Event)
	}
}

func TestLarkHandlerHandleTask_ExecuteError(t *testing.T) {
	expectedErr := errors.New("boom")
	exec := &fakeExecutor{retErr: expectedErr}
	h := NewLarkHandler(exec, zaptest.NewLogger(t))
	payload, _ := json.Marshal(dispatch.Job{Kind: tasks.KindExecuteCallback, Result: &dispatch.Result{TicketID: "a|b|c"}})
	task := asynq.NewTask(tasks.TypeExecuteCallback, payload)
	err := h.HandleTask(context.Background(), task)
	if !errors.Is(err, expectedErr) || !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected error %v with SkipRetry, got %v", expectedErr, err)
	}
}

func TestLarkHandlerHandleTask_InvalidPayload(t *testing.T) {
	exec := &fakeExecutor{}
	h := NewLarkHandler(exec, zaptest.NewLogger(t))
	task := asynq.NewTask(tasks.TypeCheckCallback, []byte("not-json"))
	if err := h.HandleTask(context.Background(), task); err == nil {
		t.Fatalf("expected error for invalid payload")
	}
	if exec.called {
		t.Fatalf("executor should not be called when payload invalid")
	}
}

func TestLarkHandlerHandleTask_KindMismatch(t *testing.T) {
	exec := &fakeExecutor{}
	h := NewLarkHandler(exec, zaptest.NewLogger(t))
	payload, _ := json.Marshal(dispatch.Job{Kind: tasks.KindExecuteCallback})
	task := asynq.NewTask(tasks.TypeCheckCallback, payload)
	if err := h.HandleTask(context.Background(), task); err == nil {
		t.Fatalf("expected error for mismatched kind")
	}
	if exec.called {
		t.Fatalf("executor should not be called on kind mismatch")
	}
}
