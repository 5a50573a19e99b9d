package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bondedlink/internal/common"
	"bondedlink/internal/config"
	"bondedlink/internal/dbmongo"
	"bondedlink/internal/link/model"
	"bondedlink/internal/link/realtime"
	"bondedlink/internal/link/service/mocks"
	"bondedlink/internal/linkapi"
)

var testIdentity = common.Identity{
	UserID:       "user-1",
	UniversityID: "uni-1",
	Email:        "sam.lee@campus.edu",
	FullName:     "Sam Lee",
	AccessToken:  "tok-1",
}

type fixture struct {
	repo     *mocks.MockLinkRepository
	backend  *mocks.MockBackend
	journal  *mocks.MockJournalWriter
	registry *Registry
	pageSize int
	saved    atomic.Int32
}

func newFixture(t *testing.T, persistReplies bool, pageSize int, hub Hub) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		repo:     mocks.NewMockLinkRepository(ctrl),
		backend:  mocks.NewMockBackend(ctrl),
		journal:  mocks.NewMockJournalWriter(ctrl),
		pageSize: pageSize,
	}
	cfg := &config.Config{Chat: config.ChatConfig{PageSize: pageSize, PersistReplies: persistReplies}}
	f.registry = NewRegistry(f.repo, f.backend, f.journal, hub, zap.NewNop(), nil, cfg)
	t.Cleanup(f.registry.CloseAll)
	return f
}

func (f *fixture) expectOpen(history []model.Message, memory *model.Memory) {
	f.repo.EXPECT().GetOrCreateConversation(gomock.Any(), "user-1", "uni-1").Return("conv-1", nil).Times(1)
	f.repo.EXPECT().Memory(gomock.Any(), "user-1").Return(memory, nil).Times(1)
	f.repo.EXPECT().ActiveSessionID(gomock.Any(), "user-1").Return("sess-1", nil).Times(1)
	f.repo.EXPECT().LinkUserID(gomock.Any(), "uni-1").Return("link-bot", nil).Times(1)
	f.repo.EXPECT().FetchPage(gomock.Any(), "conv-1", f.pageSize, 0).Return(history, nil).Times(1)
}

func (f *fixture) allowBackground() {
	f.backend.EXPECT().LearnStyle(gomock.Any(), "user-1", gomock.Any()).Return(nil).AnyTimes()
	f.journal.EXPECT().InsertEntry(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.repo.EXPECT().RecordInteraction(gomock.Any(), "user-1", gomock.Any()).Return(nil).AnyTimes()
	f.repo.EXPECT().TouchSession(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

// saveMessages makes InsertMessage behave like the data store: a server id
// replaces the local one.
func (f *fixture) saveMessages() *gomock.Call {
	return f.repo.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg *model.Message) error {
			msg.ID = fmt.Sprintf("srv-%d", f.saved.Add(1))
			return nil
		})
}

func historyMessage(id string, role model.Role, content string, at time.Time) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: "conv-1",
		Role:           role,
		Content:        content,
		Metadata:       model.Metadata{},
		CreatedAt:      at,
	}
}

func contents(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestRegistry_Open(t *testing.T) {
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		history       []model.Message
		memory        *model.Memory
		expectIntro   bool
		expectedCount int
	}{
		{
			name:          "empty chat gets the intro",
			expectIntro:   true,
			expectedCount: 1,
		},
		{
			name:          "known name skips the intro",
			memory:        &model.Memory{UserID: "user-1", PreferredName: &model.PreferredName{Name: "Sammy"}},
			expectedCount: 0,
		},
		{
			name: "existing history skips the intro",
			history: []model.Message{
				historyMessage("m2", model.RoleAssistant, "hello again", base.Add(time.Minute)),
				historyMessage("m1", model.RoleUser, "hi", base),
			},
			expectedCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false, 50, nil)
			f.expectOpen(tt.history, tt.memory)

			c, err := f.registry.Open(context.Background(), testIdentity)
			require.NoError(t, err)
			assert.Equal(t, "conv-1", c.ConversationID())
			assert.Equal(t, "sess-1", c.SessionID())
			assert.Equal(t, tt.expectIntro, c.AwaitingPreferredName())

			view := c.Transcript()
			require.Len(t, view.Messages, tt.expectedCount)
			if tt.expectIntro {
				intro := view.Messages[0]
				assert.Equal(t, "hey Sam! i'm link - think of me like a friend you can text anytime. btw, what should i call you?", intro.Content)
				assert.Equal(t, model.RoleAssistant, intro.Role)
				assert.True(t, intro.IsLocal())
				require.NotNil(t, intro.SenderID)
				assert.Equal(t, "link-bot", *intro.SenderID)
			}
		})
	}
}

func TestRegistry_OpenReusesController(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	f.expectOpen(nil, nil)

	first, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	refreshed := testIdentity
	refreshed.AccessToken = "tok-2"
	second, err := f.registry.Open(context.Background(), refreshed)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "tok-2", second.currentIdentity().AccessToken)

	_, err = f.registry.Open(context.Background(), common.Identity{})
	assert.Equal(t, common.CodeUnauthorized, common.CodeOf(err))
}

func TestRegistry_ConcurrentFirstOpenBuildsOnce(t *testing.T) {
	f := newFixture(t, true, 50, nil)
	f.repo.EXPECT().GetOrCreateConversation(gomock.Any(), "user-1", "uni-1").
		DoAndReturn(func(context.Context, string, string) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "conv-1", nil
		}).Times(1)
	f.repo.EXPECT().Memory(gomock.Any(), "user-1").Return(nil, nil).Times(1)
	f.repo.EXPECT().ActiveSessionID(gomock.Any(), "user-1").Return("sess-1", nil).Times(1)
	f.repo.EXPECT().LinkUserID(gomock.Any(), "uni-1").Return("link-bot", nil).Times(1)
	f.repo.EXPECT().FetchPage(gomock.Any(), "conv-1", 50, 0).Return(nil, nil).Times(1)
	// the intro is persisted exactly once
	f.saveMessages().Times(1)

	const callers = 5
	opened := make([]*Controller, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.registry.Open(context.Background(), testIdentity)
			assert.NoError(t, err)
			opened[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range opened[1:] {
		assert.Same(t, opened[0], c)
	}
	assert.Len(t, opened[0].Transcript().Messages, 1)
}

func TestRegistry_OpenConversationFailure(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	f.repo.EXPECT().GetOrCreateConversation(gomock.Any(), "user-1", "uni-1").Return("", errors.New("db down"))

	_, err := f.registry.Open(context.Background(), testIdentity)
	require.Error(t, err)
	assert.Equal(t, common.CodeServiceUnavail, common.CodeOf(err))

	_, ok := f.registry.Get("user-1")
	assert.False(t, ok)
}

func TestController_Send(t *testing.T) {
	f := newFixture(t, true, 50, nil)
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", base)}, nil)
	f.allowBackground()

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	f.saveMessages().Times(2)
	f.backend.EXPECT().Query(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req linkapi.AgentRequest) (map[string]any, error) {
			assert.Equal(t, "user-1", req.UserID)
			assert.Equal(t, "what's happening on campus tonight?", req.MessageText)
			assert.Equal(t, "uni-1", req.UniversityID)
			require.NotNil(t, req.SessionID)
			assert.Equal(t, "sess-1", *req.SessionID)
			require.NotNil(t, req.AccessToken)
			assert.Equal(t, "tok-1", *req.AccessToken)
			assert.Equal(t, "Sam", req.PreferredName)
			return map[string]any{
				"message":    "There's a jazz night at the union.",
				"citations":  []any{map[string]any{"title": "Events calendar"}},
				"run_id":     "run-9",
				"status":     "pending",
				"session_id": "srv-session",
			}, nil
		}).Times(1)

	result, err := c.Send(context.Background(), "  what's happening on campus tonight?  ")
	require.NoError(t, err)
	c.Wait()

	assert.False(t, result.Degraded)
	assert.Equal(t, "run-9", result.RunID)
	require.Len(t, result.Appended, 2)
	assert.Equal(t, model.RoleUser, result.Appended[0].Role)
	assert.Equal(t, "There's a jazz night at the union.", result.Appended[1].Content)
	assert.NotNil(t, result.Appended[1].Metadata["citations"])

	view := result.View
	assert.Equal(t, []string{
		"There's a jazz night at the union.",
		"what's happening on campus tonight?",
		"hi",
	}, contents(view.Messages))
	for _, m := range view.Messages {
		assert.False(t, m.IsLocal(), "confirmed message %q should replace its optimistic copy", m.Content)
	}
	assert.Equal(t, "run-9", view.ActiveRunID)
	require.NotNil(t, view.Outreach)
	assert.Equal(t, "pending", view.Outreach.Status)

	// the session resolved at open time is kept
	assert.Equal(t, "sess-1", c.SessionID())
}

func TestController_SendRetriesSessionAfterFailedOpen(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	f.repo.EXPECT().GetOrCreateConversation(gomock.Any(), "user-1", "uni-1").Return("conv-1", nil)
	f.repo.EXPECT().Memory(gomock.Any(), "user-1").Return(nil, nil)
	f.repo.EXPECT().LinkUserID(gomock.Any(), "uni-1").Return("link-bot", nil)
	f.repo.EXPECT().FetchPage(gomock.Any(), "conv-1", 50, 0).
		Return([]model.Message{historyMessage("m1", model.RoleUser, "hi", base)}, nil)
	gomock.InOrder(
		f.repo.EXPECT().ActiveSessionID(gomock.Any(), "user-1").Return("", errors.New("db blip")),
		f.repo.EXPECT().ActiveSessionID(gomock.Any(), "user-1").Return("sess-2", nil),
	)
	f.allowBackground()

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)
	require.Empty(t, c.SessionID())

	var stored *string
	f.repo.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg *model.Message) error {
			stored = msg.SessionID
			msg.ID = "srv-1"
			return nil
		})
	f.backend.EXPECT().Query(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req linkapi.AgentRequest) (map[string]any, error) {
			require.NotNil(t, req.SessionID)
			assert.Equal(t, "sess-2", *req.SessionID)
			return map[string]any{"message": "hey"}, nil
		})

	_, err = c.Send(context.Background(), "anything fun today")
	require.NoError(t, err)
	c.Wait()

	assert.Equal(t, "sess-2", c.SessionID())
	require.NotNil(t, stored)
	assert.Equal(t, "sess-2", *stored)
}

func TestController_SendBackgroundWrites(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	f.expectOpen(nil, &model.Memory{UserID: "user-1", PreferredName: &model.PreferredName{Name: "Sammy"}})

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	f.saveMessages().Times(1)
	f.backend.EXPECT().Query(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req linkapi.AgentRequest) (map[string]any, error) {
			assert.Equal(t, "Sammy", req.PreferredName)
			return map[string]any{"response": "ok!"}, nil
		})
	f.backend.EXPECT().LearnStyle(gomock.Any(), "user-1", "any clubs for climbing").Return(errors.New("style down"))
	f.journal.EXPECT().InsertEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry dbmongo.JournalEntry) error {
			assert.Equal(t, "user-1", entry.UserID)
			assert.Equal(t, "uni-1", entry.UniversityID)
			assert.Equal(t, "any clubs for climbing", entry.Content)
			return nil
		})
	f.repo.EXPECT().RecordInteraction(gomock.Any(), "user-1", gomock.Any()).Return(nil)
	f.repo.EXPECT().TouchSession(gomock.Any(), "sess-1", gomock.Any()).Return(errors.New("touch failed"))

	result, err := c.Send(context.Background(), "any clubs for climbing")
	require.NoError(t, err)
	c.Wait()

	assert.False(t, result.Degraded)
	assert.Equal(t, []string{"ok!", "any clubs for climbing"}, contents(result.View.Messages))
}

func TestController_SendCapturesPreferredName(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	f.expectOpen(nil, nil)
	f.allowBackground()

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)
	require.True(t, c.AwaitingPreferredName())

	f.repo.EXPECT().SetPreferredName(gomock.Any(), "user-1", "Sammy", gomock.Any()).Return(nil)
	f.saveMessages().Times(1)
	f.backend.EXPECT().Query(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req linkapi.AgentRequest) (map[string]any, error) {
			assert.Equal(t, "Sammy", req.PreferredName)
			return map[string]any{"message": "nice to meet you Sammy"}, nil
		})

	result, err := c.Send(context.Background(), "Sammy")
	require.NoError(t, err)
	c.Wait()

	assert.Equal(t, "Sammy", result.PreferredName)
	assert.False(t, c.AwaitingPreferredName())
	require.NotEmpty(t, result.Appended)
	assert.Equal(t, "got it — i’ll call you Sammy.", result.Appended[0].Content)
	assert.Contains(t, contents(result.View.Messages), "got it — i’ll call you Sammy.")
}

func TestController_SendBackendUnavailable(t *testing.T) {
	f := newFixture(t, true, 50, nil)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", time.Now().Add(-time.Hour))}, nil)
	f.allowBackground()

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	// only the user's message is stored; the notice stays local
	f.saveMessages().Times(1)
	f.backend.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, &linkapi.APIError{Status: 502})

	result, err := c.Send(context.Background(), "hello?")
	require.NoError(t, err)
	c.Wait()

	assert.True(t, result.Degraded)
	last := result.Appended[len(result.Appended)-1]
	assert.Equal(t, "Link is unavailable right now. Please try again in a moment.", last.Content)
	assert.True(t, last.IsLocal())
	assert.Equal(t, "Link is unavailable right now. Please try again in a moment.", result.View.Messages[0].Content)
}

func TestController_SendPersistFailure(t *testing.T) {
	f := newFixture(t, true, 50, nil)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", time.Now().Add(-time.Hour))}, nil)

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	f.repo.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Return(errors.New("insert failed")).Times(1)
	f.backend.EXPECT().Query(gomock.Any(), gomock.Any()).Times(0)

	result, err := c.Send(context.Background(), "are you there")
	require.Error(t, err)
	assert.Equal(t, common.CodeServiceUnavail, common.CodeOf(err))
	require.NotNil(t, result)
	assert.True(t, result.Degraded)
	assert.Equal(t, []string{
		"Link is unavailable right now. Please try again in a moment.",
		"are you there",
		"hi",
	}, contents(result.View.Messages))
}

func TestController_SendValidation(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", time.Now())}, nil)

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	tests := []struct {
		name     string
		text     string
		expected error
		code     common.ErrorCode
	}{
		{name: "empty", text: "", expected: ErrEmptyMessage},
		{name: "whitespace", text: "   \n", expected: ErrEmptyMessage},
		{name: "too long", text: strings.Repeat("a", common.MaxMessageRunes+1), code: common.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Send(context.Background(), tt.text)
			require.Error(t, err)
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
			}
			if tt.code != "" {
				assert.Equal(t, tt.code, common.CodeOf(err))
			}
		})
	}
}

func TestController_SendInFlight(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", time.Now())}, nil)
	f.allowBackground()

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	f.saveMessages().Times(1)
	f.backend.EXPECT().Query(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, linkapi.AgentRequest) (map[string]any, error) {
			close(started)
			<-release
			return map[string]any{"message": "done"}, nil
		})

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "first message")
		done <- err
	}()

	<-started
	_, err = c.Send(context.Background(), "second message")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	require.NoError(t, <-done)
	c.Wait()
}

func TestController_CheckStatus(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	base := time.Now().Add(-time.Hour)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", base)}, nil)

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	_, err = c.CheckStatus(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveOutreach)

	outreachMsg := historyMessage("m2", model.RoleAssistant, "asking around for you", base.Add(time.Minute))
	outreachMsg.Metadata = model.Metadata{"run_id": "run-3", "outreach_status": "running"}
	require.True(t, c.Ingest(outreachMsg))

	f.backend.EXPECT().CollectOutreach(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req linkapi.CollectRequest) (map[string]any, error) {
			assert.Equal(t, "run-3", req.RunID)
			assert.Equal(t, "uni-1", req.UniversityID)
			return map[string]any{
				"status":        "complete",
				"need_outreach": false,
				"message":       "Found two people who play chess.",
				"data": map[string]any{
					"type": "people",
					"results": []any{
						map[string]any{"user_id": "u-7", "full_name": "Ada Park"},
					},
				},
			}, nil
		})

	result, err := c.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-3", result.RunID)
	require.Len(t, result.Appended, 2)
	assert.Equal(t, "Found two people who play chess.", result.Appended[0].Content)
	assert.Equal(t, "Ada Park", result.Appended[1].Content)
	assert.Equal(t, "profile", result.Appended[1].Metadata["shareType"])

	f.backend.EXPECT().CollectOutreach(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	_, err = c.CheckStatus(context.Background())
	assert.Equal(t, common.CodeServiceUnavail, common.CodeOf(err))
}

func TestController_ResolveConsent(t *testing.T) {
	tests := []struct {
		name     string
		approved bool
		ack      string
	}{
		{name: "approved", approved: true, ack: "Got it — I’ll introduce you now."},
		{name: "declined", approved: false, ack: "No worries — I’ll keep looking."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false, 50, nil)
			f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", time.Now())}, nil)

			c, err := f.registry.Open(context.Background(), testIdentity)
			require.NoError(t, err)

			f.backend.EXPECT().ResolveConsent(gomock.Any(), linkapi.ConsentRequest{
				RunID:           "run-1",
				RequesterUserID: "user-1",
				TargetUserID:    "user-2",
				RequesterOK:     tt.approved,
				TargetOK:        true,
			}).Return(map[string]any{"status": "ok"}, nil)

			result, err := c.ResolveConsent(context.Background(), "run-1", "user-2", tt.approved)
			require.NoError(t, err)
			require.Len(t, result.Appended, 1)
			assert.Equal(t, tt.ack, result.Appended[0].Content)
			assert.Equal(t, true, result.Appended[0].Metadata["consent_ack"])
		})
	}
}

func TestController_ResolveConsentErrors(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", time.Now())}, nil)

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	_, err = c.ResolveConsent(context.Background(), "", "user-2", true)
	assert.Equal(t, common.CodeInvalidInput, common.CodeOf(err))

	f.backend.EXPECT().ResolveConsent(gomock.Any(), gomock.Any()).Return(nil, errors.New("backend down"))
	_, err = c.ResolveConsent(context.Background(), "run-1", "user-2", true)
	assert.Equal(t, common.CodeServiceUnavail, common.CodeOf(err))
	assert.Len(t, c.Transcript().Messages, 1)
}

func TestController_Pagination(t *testing.T) {
	f := newFixture(t, false, 2, nil)
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	f.expectOpen([]model.Message{
		historyMessage("m3", model.RoleAssistant, "three", base.Add(3*time.Minute)),
		historyMessage("m2", model.RoleUser, "two", base.Add(2*time.Minute)),
	}, nil)

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)
	assert.True(t, c.Transcript().HasMore)

	f.repo.EXPECT().FetchPage(gomock.Any(), "conv-1", 2, 2).Return([]model.Message{
		historyMessage("m1", model.RoleUser, "one", base.Add(time.Minute)),
	}, nil)

	view, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, view.HasMore)
	assert.Equal(t, []string{"three", "two", "one"}, contents(view.Messages))

	// nothing left to fetch
	view, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Len(t, view.Messages, 3)

	f.repo.EXPECT().FetchPage(gomock.Any(), "conv-1", 3, 0).Return([]model.Message{
		historyMessage("m4", model.RoleAssistant, "four", base.Add(4*time.Minute)),
		historyMessage("m3", model.RoleAssistant, "three", base.Add(3*time.Minute)),
		historyMessage("m2", model.RoleUser, "two", base.Add(2*time.Minute)),
	}, nil)

	view, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, view.HasMore)
	assert.Equal(t, []string{"four", "three", "two"}, contents(view.Messages))
}

func TestController_ConcurrentLoadMoreKeepsEveryPage(t *testing.T) {
	f := newFixture(t, false, 2, nil)
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	rows := make([]model.Message, 0, 8)
	for i := 8; i >= 1; i-- {
		rows = append(rows, historyMessage(fmt.Sprintf("msg-%d", i), model.RoleUser, fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	f.expectOpen(rows[:2], nil)

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	f.repo.EXPECT().FetchPage(gomock.Any(), "conv-1", 2, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, limit, offset int) ([]model.Message, error) {
			time.Sleep(20 * time.Millisecond)
			end := offset + limit
			if end > len(rows) {
				end = len(rows)
			}
			return rows[offset:end], nil
		}).Times(3)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.LoadMore(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"msg-8", "msg-7", "msg-6", "msg-5", "msg-4", "msg-3", "msg-2", "msg-1"}, contents(view.Messages))
}

func TestController_IngestAndReset(t *testing.T) {
	f := newFixture(t, false, 50, nil)
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", base)}, nil)

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)

	other := historyMessage("x1", model.RoleAssistant, "elsewhere", base)
	other.ConversationID = "conv-2"
	assert.False(t, c.Ingest(other))

	delivered := historyMessage("m2", model.RoleAssistant, "hey!", base.Add(time.Minute))
	assert.True(t, c.Ingest(delivered))
	assert.True(t, c.Ingest(delivered))
	assert.Equal(t, []string{"hey!", "hi"}, contents(c.Transcript().Messages))

	view := c.Reset()
	assert.Equal(t, []string{"hi"}, contents(view.Messages))
}

func TestController_RealtimeDelivery(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil)
	f := newFixture(t, false, 50, hub)
	f.expectOpen([]model.Message{historyMessage("m1", model.RoleUser, "hi", time.Now().Add(-time.Hour))}, nil)

	c, err := f.registry.Open(context.Background(), testIdentity)
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers("conv-1"))

	hub.Broadcast(historyMessage("m2", model.RoleAssistant, "pushed from elsewhere", time.Now()))

	assert.Eventually(t, func() bool {
		return len(c.Transcript().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)

	f.registry.Close("user-1")
	assert.Equal(t, 0, hub.Subscribers("conv-1"))
}
