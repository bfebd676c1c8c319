package service

import (
	"context"
	"sync"

	"github.com/dreamspy/mnemo/pkg/mnemo/types"
)

type mockClient struct {
	mu    sync.Mutex
	calls []string
	token string

	postEventFn func(ctx context.Context, event *types.Event) (*types.EventStored, error)
	saveDiaryFn func(ctx context.Context, date string, answers map[string]interface{}) (*types.DiaryEntry, error)
	parseTextFn func(ctx context.Context, rawText string, questions []types.Question) (map[string]string, error)
	healthFn    func(ctx context.Context) error
}

func newMockClient() *mockClient {
	return &mockClient{token: "test-token"}
}

func (m *mockClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockClient) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockClient) PostEvent(ctx context.Context, event *types.Event) (*types.EventStored, error) {
	m.record("PostEvent")
	if m.postEventFn != nil {
		return m.postEventFn(ctx, event)
	}
	return &types.EventStored{ID: event.ID}, nil
}

func (m *mockClient) SaveDiary(ctx context.Context, date string, answers map[string]interface{}) (*types.DiaryEntry, error) {
	m.record("SaveDiary")
	if m.saveDiaryFn != nil {
		return m.saveDiaryFn(ctx, date, answers)
	}
	return &types.DiaryEntry{Date: date, Answers: answers}, nil
}

func (m *mockClient) ParseText(ctx context.Context, rawText string, questions []types.Question) (map[string]string, error) {
	m.record("ParseText")
	if m.parseTextFn != nil {
		return m.parseTextFn(ctx, rawText, questions)
	}
	return map[string]string{}, nil
}

func (m *mockClient) GetDiary(ctx context.Context, date string) (*types.DiaryEntry, error) {
	m.record("GetDiary")
	return &types.DiaryEntry{Date: date}, nil
}

func (m *mockClient) GetDiarySummary(ctx context.Context, date string) (string, error) {
	m.record("GetDiarySummary")
	return "", nil
}

func (m *mockClient) ListEvents(ctx context.Context, filter types.EventFilter) ([]types.EventStored, error) {
	m.record("ListEvents")
	return nil, nil
}

func (m *mockClient) Query(ctx context.Context, question string) (string, error) {
	m.record("Query")
	return "", nil
}

func (m *mockClient) Health(ctx context.Context) error {
	m.record("Health")
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return nil
}

func (m *mockClient) HasToken() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

func (m *mockClient) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}
