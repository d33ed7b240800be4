package santa_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"santabot/backend/internal/models"
	"santabot/backend/internal/santa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendPrivate(ctx context.Context, chatID int64, text string) error {
	args := m.Called(chatID, text)
	return args.Error(0)
}

var testLabels = santa.Labels{
	Intro:     "<b>Your target:</b>",
	RestIntro: "<b>One more target:</b>",
	Fields: map[models.Field]string{
		models.FieldFullName:    "Name:",
		models.FieldPhone:       "Phone:",
		models.FieldCity:        "City:",
		models.FieldPickupPoint: "Branch:",
	},
}

func TestRenderProfile_OrderedLines(t *testing.T) {
	p := models.CompleteProfile{FullName: "Taras", Phone: "+380", City: "Odesa", PickupPoint: "7"}

	text := santa.RenderProfile(p, testLabels)

	assert.Equal(t, "Name: Taras\nPhone: +380\nCity: Odesa\nBranch: 7", text)
}

func TestRenderProfile_EscapesValues(t *testing.T) {
	p := models.CompleteProfile{FullName: "<script>", Phone: "a&b", City: "c", PickupPoint: "d"}

	text := santa.RenderProfile(p, testLabels)

	assert.Contains(t, text, "&lt;script&gt;")
	assert.Contains(t, text, "a&amp;b")
}

func TestRenderProfile_MissingLabelFallsBackToField(t *testing.T) {
	p := models.CompleteProfile{FullName: "X", Phone: "1", City: "c", PickupPoint: "d"}

	text := santa.RenderProfile(p, santa.Labels{})

	assert.True(t, strings.HasPrefix(text, "fullName X"))
}

func TestNotifications_AddressesGiver(t *testing.T) {
	profiles := makeProfiles(3)
	assignments := []santa.Assignment{
		{Giver: profiles[0], Recipient: profiles[1]},
		{Giver: profiles[1], Recipient: profiles[2], Kind: santa.KindRest},
	}

	notes := santa.Notifications(assignments, testLabels)

	require.Len(t, notes, 2)
	assert.Equal(t, profiles[0].PrivateChatID, notes[0].ChatID)
	assert.Equal(t, profiles[0].ID, notes[0].GiverID)
	assert.True(t, strings.HasPrefix(notes[0].Text, testLabels.Intro+"\n"))
	assert.Contains(t, notes[0].Text, profiles[1].FullName)

	assert.Equal(t, santa.KindRest, notes[1].Kind)
	assert.True(t, strings.HasPrefix(notes[1].Text, testLabels.RestIntro+"\n"))
}

// TestDeliver_ContinuesAfterFailure checks a failed send does not block the rest.
func TestDeliver_ContinuesAfterFailure(t *testing.T) {
	// Arrange
	sender := new(MockSender)
	notes := []santa.Notification{
		{GiverID: 1, ChatID: 11, Text: "one"},
		{GiverID: 2, ChatID: 22, Text: "two"},
		{GiverID: 3, ChatID: 33, Text: "three"},
	}
	boom := errors.New("telegram down")
	sender.On("SendPrivate", int64(11), "one").Return(nil).Once()
	sender.On("SendPrivate", int64(22), "two").Return(boom).Once()
	sender.On("SendPrivate", int64(33), "three").Return(nil).Once()

	// Act
	err := santa.Deliver(context.Background(), sender, notes)

	// Assert
	assert.ErrorIs(t, err, boom)
	sender.AssertExpectations(t)
}

func TestDeliver_AllOK(t *testing.T) {
	sender := new(MockSender)
	sender.On("SendPrivate", mock.Anything, mock.Anything).Return(nil)

	err := santa.Deliver(context.Background(), sender, []santa.Notification{{ChatID: 1, Text: "x"}})

	assert.NoError(t, err)
	sender.AssertNumberOfCalls(t, "SendPrivate", 1)
}
