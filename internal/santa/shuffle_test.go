package santa

import (
	"testing"

	"santabot/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replays picks in order, then returns 0.
func scripted(picks ...int) func(int) int {
	return func(n int) int {
		if len(picks) == 0 {
			return 0
		}
		p := picks[0]
		picks = picks[1:]
		if p >= n {
			return n - 1
		}
		return p
	}
}

func person(id int64) models.CompleteProfile {
	return models.CompleteProfile{Identity: models.Identity{ID: id, GroupChatID: -1, PrivateChatID: id}}
}

// TestShuffle_RepairsTrailingCollision forces the last santa and target to
// share a pair and checks the swap keeps every constraint.
func TestShuffle_RepairsTrailingCollision(t *testing.T) {
	// A=1 B=2 | C=3 D=4 | E=5 F=6
	pairs := []Pair{
		{Santa: person(1), Target: person(2), Token: "t1"},
		{Santa: person(3), Target: person(4), Token: "t2"},
		{Santa: person(5), Target: person(6), Token: "t3"},
	}
	// D->A, then B->C, leaving E and F from the same pair.
	e := &Engine{IntN: scripted(0, 1, 1, 0)}

	out := e.shuffle(pairs)

	require.Len(t, out, 3)
	token := map[int64]string{1: "t1", 2: "t1", 3: "t2", 4: "t2", 5: "t3", 6: "t3"}
	gives, receives := map[int64]int{}, map[int64]int{}
	for _, a := range out {
		assert.NotEqual(t, token[a.Giver.ID], token[a.Recipient.ID])
		gives[a.Giver.ID]++
		receives[a.Recipient.ID]++
	}
	for _, id := range []int64{2, 4, 6} {
		assert.Equal(t, 1, gives[id], "target %d gives once", id)
	}
	for _, id := range []int64{1, 3, 5} {
		assert.Equal(t, 1, receives[id], "santa %d receives once", id)
	}
}

// TestShuffle_CollisionFallsBackToValidPick keeps redrawing the colliding
// target and checks the fallback never commits it.
func TestShuffle_CollisionFallsBackToValidPick(t *testing.T) {
	pairs := []Pair{
		{Santa: person(1), Target: person(2), Token: "t1"},
		{Santa: person(3), Target: person(4), Token: "t2"},
	}
	// A picked with its own partner B on every draw.
	e := &Engine{IntN: func(int) int { return 0 }}

	out := e.shuffle(pairs)

	require.Len(t, out, 2)
	assert.Equal(t, int64(4), out[0].Giver.ID)
	assert.Equal(t, int64(1), out[0].Recipient.ID)
	assert.Equal(t, int64(2), out[1].Giver.ID)
	assert.Equal(t, int64(3), out[1].Recipient.ID)
}

func TestPickOther(t *testing.T) {
	e := &Engine{IntN: func(int) int { return 0 }}
	cands := []candidate{{token: "a"}, {token: "b"}}

	assert.Equal(t, 1, e.pickOther(cands, "a"))
	assert.Equal(t, -1, e.pickOther(cands[:1], "a"))
}
