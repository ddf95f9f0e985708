package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEnqueuer struct{ mock.Mock }

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

func TestDispatch_EnqueuesPayload(t *testing.T) {
	enq := &mockEnqueuer{}
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p SendCodePayload
		_ = json.Unmarshal(task.Payload(), &p)
		return task.Type() == TypeSendCode && p.Email == "a@b.com" && p.Code == "123456"
	})).Return(&asynq.TaskInfo{ID: "1"}, nil)

	NewMailQueue(enq, "mail").Dispatch(context.Background(), "a@b.com", "123456")
	enq.AssertExpectations(t)
}

func TestDispatch_SwallowsEnqueueFailure(t *testing.T) {
	enq := &mockEnqueuer{}
	enq.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	assert.NotPanics(t, func() {
		NewMailQueue(enq, "mail").Dispatch(context.Background(), "a@b.com", "123456")
	})
}

func TestDispatch_SurvivesCancelledRequest(t *testing.T) {
	enq := &mockEnqueuer{}
	enq.On("EnqueueContext", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewMailQueue(enq, "mail").Dispatch(ctx, "a@b.com", "123456")
	enq.AssertExpectations(t)
}

func newTestWorker(m *mockMailer) *Worker {
	return &Worker{mailer: m, validity: 10 * time.Minute}
}

func TestHandleSendCode_SendsMail(t *testing.T) {
	m := &mockMailer{}
	m.On("SendEmail", "a@b.com", "Your verification code", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "123456")
	})).Return(nil)

	body, err := json.Marshal(SendCodePayload{Email: "a@b.com", Code: "123456"})
	require.NoError(t, err)
	require.NoError(t, newTestWorker(m).HandleSendCode(context.Background(), asynq.NewTask(TypeSendCode, body)))
	m.AssertExpectations(t)
}

func TestHandleSendCode_MailerErrorRetries(t *testing.T) {
	m := &mockMailer{}
	m.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	body, _ := json.Marshal(SendCodePayload{Email: "a@b.com", Code: "123456"})
	err := newTestWorker(m).HandleSendCode(context.Background(), asynq.NewTask(TypeSendCode, body))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSendCode_MalformedPayloadSkipsRetry(t *testing.T) {
	m := &mockMailer{}
	err := newTestWorker(m).HandleSendCode(context.Background(), asynq.NewTask(TypeSendCode, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	m.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}
