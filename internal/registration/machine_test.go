package registration_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"santabot/backend/internal/config"
	"santabot/backend/internal/localization"
	"santabot/backend/internal/models"
	"santabot/backend/internal/registration"
	"santabot/backend/internal/session"
	"santabot/backend/internal/storage"
	"santabot/backend/internal/storage/jsondb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGroupChat int64 = -100123

type sentMessage struct {
	ChatID  int64
	Text    string
	Actions []registration.Action
}

// recordingNotifier keeps every prompt and private message in order.
type recordingNotifier struct {
	mu       sync.Mutex
	prompts  []sentMessage
	privates []sentMessage
}

func (n *recordingNotifier) Prompt(_ context.Context, chatID int64, text string, actions ...registration.Action) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prompts = append(n.prompts, sentMessage{ChatID: chatID, Text: text, Actions: actions})
	return nil
}

func (n *recordingNotifier) SendPrivate(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.privates = append(n.privates, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *recordingNotifier) lastPrompt(t *testing.T) sentMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.prompts)
	return n.prompts[len(n.prompts)-1]
}

type fixture struct {
	machine  *registration.Machine
	notifier *recordingNotifier
	store    storage.Store
	text     func(key string) string
}

func newFixture(t *testing.T, expected int) fixture {
	t.Helper()
	db, err := jsondb.Open(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	require.NoError(t, storage.NewEventRepository(db, testGroupChat).SetChat(context.Background(), "Office", expected))

	loc, err := localization.Default()
	require.NoError(t, err)

	n := &recordingNotifier{}
	m := registration.NewMachine(session.NewMemoryStore(), db, nil, nil, n, loc, "en")
	return fixture{
		machine:  m,
		notifier: n,
		store:    db,
		text:     func(key string) string { return loc.GetString("en", key) },
	}
}

func identity(id int64) models.Identity {
	return models.Identity{ID: id, GroupChatID: testGroupChat, PrivateChatID: id * 10}
}

func (f fixture) register(t *testing.T, id int64) registration.Outcome {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.machine.Enter(ctx, identity(id)))
	for _, answer := range []string{"Name", "+380", "Kyiv", "5"} {
		require.NoError(t, f.machine.SubmitAnswer(ctx, id, answer))
	}
	out, err := f.machine.Finalize(ctx, id)
	require.NoError(t, err)
	return out
}

// TestDialogue_PromptOrder walks a user through every step.
func TestDialogue_PromptOrder(t *testing.T) {
	// Arrange
	f := newFixture(t, 3)
	ctx := context.Background()

	// Act
	require.NoError(t, f.machine.Enter(ctx, identity(1)))
	for _, answer := range []string{"Ivan Franko", "+380971112233", "Lviv", "12"} {
		require.NoError(t, f.machine.SubmitAnswer(ctx, 1, answer))
	}

	// Assert
	require.Len(t, f.notifier.prompts, 5)
	for i, step := range registration.Steps {
		assert.Equal(t, f.text(step.Prompt), f.notifier.prompts[i].Text)
		assert.Equal(t, int64(10), f.notifier.prompts[i].ChatID)
		assert.Empty(t, f.notifier.prompts[i].Actions)
	}
	last := f.notifier.lastPrompt(t)
	assert.Equal(t, f.text(registration.KeyRegisterData), last.Text)
	require.Len(t, last.Actions, 1)
	assert.Equal(t, config.ActionRegister, last.Actions[0].Data)

	cursor, profile, err := f.machine.Progress(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, len(registration.Steps), cursor)
	assert.Equal(t, "Ivan Franko", profile.FullName)
	assert.Equal(t, "+380971112233", profile.Phone)
	assert.Equal(t, "Lviv", profile.City)
	assert.Equal(t, "12", profile.PickupPoint)

	state, err := f.machine.StateOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, registration.StateAwaitingFinalize, state)
}

func TestSubmitAnswer_AfterLastStepIgnored(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	require.NoError(t, f.machine.Enter(ctx, identity(1)))
	for _, answer := range []string{"A", "B", "C", "D"} {
		require.NoError(t, f.machine.SubmitAnswer(ctx, 1, answer))
	}
	sent := len(f.notifier.prompts)

	require.NoError(t, f.machine.SubmitAnswer(ctx, 1, "extra"))

	assert.Len(t, f.notifier.prompts, sent)
	_, profile, err := f.machine.Progress(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "D", profile.PickupPoint)
}

func TestSubmitAnswer_WithoutSessionIsNoop(t *testing.T) {
	f := newFixture(t, 3)

	require.NoError(t, f.machine.SubmitAnswer(context.Background(), 99, "hello"))

	assert.Empty(t, f.notifier.prompts)
	state, err := f.machine.StateOf(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, registration.StateIdle, state)
}

func TestEnter_InvalidIdentityIgnored(t *testing.T) {
	f := newFixture(t, 3)

	err := f.machine.Enter(context.Background(), models.Identity{ID: 1, PrivateChatID: 1})

	require.NoError(t, err)
	assert.Empty(t, f.notifier.prompts)
}

func TestEnter_RestartsDialogue(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	require.NoError(t, f.machine.Enter(ctx, identity(1)))
	require.NoError(t, f.machine.SubmitAnswer(ctx, 1, "First"))

	require.NoError(t, f.machine.Enter(ctx, identity(1)))

	cursor, profile, err := f.machine.Progress(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, cursor)
	assert.Empty(t, profile.FullName)
}

func TestFinalize_IncompleteIsIgnored(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	require.NoError(t, f.machine.Enter(ctx, identity(1)))
	require.NoError(t, f.machine.SubmitAnswer(ctx, 1, "Only name"))

	out, err := f.machine.Finalize(ctx, 1)

	require.NoError(t, err)
	assert.Equal(t, registration.OutcomeIgnored, out)
	count, err := storage.NewEventRepository(f.store, testGroupChat).RegistrationsCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// TestFinalize_Twice persists a single profile and tells the user about the
// duplicate.
func TestFinalize_Twice(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	assert.Equal(t, registration.OutcomeRegistered, f.register(t, 1))
	assert.Equal(t, f.text(registration.KeyRegistered), f.notifier.lastPrompt(t).Text)

	out, err := f.machine.Finalize(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, registration.OutcomeAlreadyRegistered, out)
	assert.Equal(t, f.text(registration.KeyAlreadyExists), f.notifier.lastPrompt(t).Text)
	count, err := storage.NewEventRepository(f.store, testGroupChat).RegistrationsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	state, err := f.machine.StateOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, registration.StateFinalized, state)
}

func TestFinalize_ConcurrentSameUser(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	require.NoError(t, f.machine.Enter(ctx, identity(1)))
	for _, answer := range []string{"A", "B", "C", "D"} {
		require.NoError(t, f.machine.SubmitAnswer(ctx, 1, answer))
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.machine.Finalize(ctx, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := storage.NewEventRepository(f.store, testGroupChat).RegistrationsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestFullEvent_DrawsOnce registers four users; the last one triggers a
// single draw with one notification per participant.
func TestFullEvent_DrawsOnce(t *testing.T) {
	f := newFixture(t, 4)

	for id := int64(1); id <= 3; id++ {
		assert.Equal(t, registration.OutcomeRegistered, f.register(t, id))
	}
	assert.Empty(t, f.notifier.privates)

	assert.Equal(t, registration.OutcomeDrawn, f.register(t, 4))

	require.Len(t, f.notifier.privates, 4)
	givers := map[int64]int{}
	for _, msg := range f.notifier.privates {
		givers[msg.ChatID]++
		assert.Contains(t, msg.Text, f.text("result_target"))
	}
	for id := int64(1); id <= 4; id++ {
		assert.Equal(t, 1, givers[id*10], "participant %d gets one message", id)
	}

	// A late duplicate finalize must not draw again.
	out, err := f.machine.Finalize(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, registration.OutcomeAlreadyRegistered, out)
	assert.Len(t, f.notifier.privates, 4)
}

func TestFullEvent_OddGroupNotifiesRest(t *testing.T) {
	f := newFixture(t, 3)

	for id := int64(1); id <= 3; id++ {
		f.register(t, id)
	}

	require.Len(t, f.notifier.privates, 4)
	var rest int
	for _, msg := range f.notifier.privates {
		if strings.HasPrefix(msg.Text, f.text("result_target_with_rest")) {
			rest++
		}
	}
	assert.Equal(t, 1, rest)
}

func TestDraw_SingleParticipantIsError(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, f.machine.Enter(ctx, identity(1)))
	for _, answer := range []string{"A", "B", "C", "D"} {
		require.NoError(t, f.machine.SubmitAnswer(ctx, 1, answer))
	}

	out, err := f.machine.Finalize(ctx, 1)

	assert.Equal(t, registration.OutcomeRegistered, out)
	assert.Error(t, err)
	assert.Empty(t, f.notifier.privates)

	drawn, err := storage.NewEventRepository(f.store, testGroupChat).Drawn(ctx)
	require.NoError(t, err)
	assert.False(t, drawn, "a refused draw can be retried")
}

// TestCheckComplete_AfterExpectedCountDrops covers an event that becomes
// complete because fewer people than expected joined.
func TestCheckComplete_AfterExpectedCountDrops(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	ctx := context.Background()
	repo := storage.NewEventRepository(f.store, testGroupChat)
	f.register(t, 1)
	f.register(t, 2)

	drew, err := f.machine.CheckComplete(ctx, testGroupChat)
	require.NoError(t, err)
	assert.False(t, drew, "two of four is not complete")
	assert.Empty(t, f.notifier.privates)

	// Act
	require.NoError(t, repo.UpdateExpectedCount(ctx, 2))
	drew, err = f.machine.CheckComplete(ctx, testGroupChat)

	// Assert
	require.NoError(t, err)
	assert.True(t, drew)
	assert.Len(t, f.notifier.privates, 2)

	drawn, err := repo.Drawn(ctx)
	require.NoError(t, err)
	assert.True(t, drawn)

	drew, err = f.machine.CheckComplete(ctx, testGroupChat)
	require.NoError(t, err)
	assert.False(t, drew, "an event is drawn once")
	assert.Len(t, f.notifier.privates, 2)
}

func TestCheckComplete_ConcurrentDrawsOnce(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		f.register(t, id)
	}
	require.NoError(t, storage.NewEventRepository(f.store, testGroupChat).UpdateExpectedCount(ctx, 3))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.machine.CheckComplete(ctx, testGroupChat)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Len(t, f.notifier.privates, 4, "three participants draw once with a rest")
}

func TestFinalize_AfterDrawDoesNotRedraw(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	f.register(t, 1)
	f.register(t, 2)
	require.NoError(t, storage.NewEventRepository(f.store, testGroupChat).UpdateExpectedCount(ctx, 2))
	_, err := f.machine.CheckComplete(ctx, testGroupChat)
	require.NoError(t, err)
	require.Len(t, f.notifier.privates, 2)

	// A late registrant restores the old count but the event stays drawn.
	require.NoError(t, storage.NewEventRepository(f.store, testGroupChat).UpdateExpectedCount(ctx, 3))
	assert.Equal(t, registration.OutcomeRegistered, f.register(t, 3))
	assert.Len(t, f.notifier.privates, 2)
}

func TestLeave_DiscardsStub(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	require.NoError(t, f.machine.Enter(ctx, identity(1)))
	require.NoError(t, f.machine.SubmitAnswer(ctx, 1, "Name"))

	require.NoError(t, f.machine.Leave(ctx, 1, 10))

	_, _, err := f.machine.Progress(ctx, 1)
	assert.ErrorIs(t, err, registration.ErrNoSession)
	assert.Equal(t, f.text(registration.KeySessionLeft), f.notifier.lastPrompt(t).Text)
	count, err := storage.NewEventRepository(f.store, testGroupChat).RegistrationsCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLabels_UseLocalizedFields(t *testing.T) {
	f := newFixture(t, 3)

	labels := f.machine.Labels()

	assert.Equal(t, f.text("result_target"), labels.Intro)
	assert.Equal(t, f.text("result_target_with_rest"), labels.RestIntro)
	assert.Len(t, labels.Fields, len(models.PublicFields))
	for _, field := range models.PublicFields {
		assert.NotEmpty(t, labels.Fields[field])
	}
}
