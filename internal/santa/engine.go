// Package santa computes the gift assignment for one event and renders the
// private notifications that announce it.
//
// The draw runs in two phases. Phase 1 splits the participants into random
// pairs (santa, target) and commits santa -> target. Phase 2 closes the loop:
// every phase-1 target gives to the santa of a different pair, so nobody gives
// back to their own phase-1 partner. With a single pair both directions are
// committed instead.
//
// Odd groups leave one rest participant. The rest participant and a randomly
// chosen paired participant give to each other, so the chosen participant
// ends up with two recipients.
package santa

import (
	"errors"
	"log/slog"
	"math/rand/v2"

	"santabot/backend/internal/config"
	"santabot/backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotEnoughParticipants is returned for events with fewer than two
// completed profiles; no assignment exists for them.
var ErrNotEnoughParticipants = errors.New("santa: at least two participants are required")

// Kind distinguishes regular assignments from the extra one towards the rest
// participant.
type Kind int

const (
	KindRegular Kind = iota
	KindRest
)

// Pair is a phase-1 pairing. Token correlates both sides in phase 2.
type Pair struct {
	Santa  models.CompleteProfile
	Target models.CompleteProfile
	Token  string
}

// Assignment is a committed giver -> recipient direction.
type Assignment struct {
	Giver     models.CompleteProfile
	Recipient models.CompleteProfile
	Kind      Kind
}

// Result is the outcome of one draw.
type Result struct {
	Pairs       []Pair
	Rest        *models.CompleteProfile
	Assignments []Assignment
}

// Engine draws assignments. The zero value uses the global random source.
type Engine struct {
	// IntN returns a uniform int in [0, n).
	IntN func(n int) int
	// NewToken returns a fresh correlation token.
	NewToken func() string
}

// NewEngine returns an engine drawing from rnd, or from the global source
// when rnd is nil.
func NewEngine(rnd *rand.Rand) *Engine {
	e := &Engine{}
	if rnd != nil {
		e.IntN = rnd.IntN
	}
	return e
}

func (e *Engine) intN(n int) int {
	if e.IntN != nil {
		return e.IntN(n)
	}
	return rand.IntN(n)
}

func (e *Engine) token() string {
	if e.NewToken != nil {
		return e.NewToken()
	}
	return uuid.NewString()
}

// candidate is one side of a phase-1 pair entering phase 2.
type candidate struct {
	profile models.CompleteProfile
	token   string
}

// Draw pairs every profile. The input slice is not modified.
func (e *Engine) Draw(profiles []models.CompleteProfile) (Result, error) {
	if len(profiles) < config.MinParticipants {
		return Result{}, ErrNotEnoughParticipants
	}

	var res Result
	res.Pairs, res.Rest = e.rawPairs(profiles)

	for _, p := range res.Pairs {
		res.Assignments = append(res.Assignments, Assignment{Giver: p.Santa, Recipient: p.Target})
	}
	if len(res.Pairs) == 1 {
		p := res.Pairs[0]
		res.Assignments = append(res.Assignments, Assignment{Giver: p.Target, Recipient: p.Santa})
	} else {
		res.Assignments = append(res.Assignments, e.shuffle(res.Pairs)...)
	}

	if res.Rest != nil {
		res.Assignments = append(res.Assignments, e.restAssignments(res.Pairs, *res.Rest)...)
	}

	slog.Debug("santa draw complete",
		"participants", len(profiles), "pairs", len(res.Pairs),
		"assignments", len(res.Assignments), "has_rest", res.Rest != nil)
	return res, nil
}

// rawPairs draws two participants at a time without replacement until at
// most one is left over.
func (e *Engine) rawPairs(profiles []models.CompleteProfile) ([]Pair, *models.CompleteProfile) {
	pool := make([]int, len(profiles))
	for i := range pool {
		pool[i] = i
	}
	take := func() models.CompleteProfile {
		k := e.intN(len(pool))
		idx := pool[k]
		pool[k] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
		return profiles[idx]
	}

	pairs := make([]Pair, 0, len(profiles)/2)
	for len(pool) >= 2 {
		santa := take()
		target := take()
		pairs = append(pairs, Pair{Santa: santa, Target: target, Token: e.token()})
	}

	if len(pool) == 1 {
		rest := take()
		return pairs, &rest
	}
	return pairs, nil
}

// shuffle makes every phase-1 target give to the santa of another pair.
//
// A draw whose tokens match is redrawn up to config.MaxCollisionRedraws times,
// then the target is picked among the non-colliding ones. When the only
// targets left collide, the last draw is swapped with an earlier commit.
func (e *Engine) shuffle(pairs []Pair) []Assignment {
	santas := make([]candidate, len(pairs))
	targets := make([]candidate, len(pairs))
	for i, p := range pairs {
		santas[i] = candidate{profile: p.Santa, token: p.Token}
		targets[i] = candidate{profile: p.Target, token: p.Token}
	}

	type commit struct{ giver, recipient candidate }
	commits := make([]commit, 0, len(pairs))

	for len(santas) > 0 && len(targets) > 0 {
		si := e.intN(len(santas))
		santa := santas[si]

		ti := e.intN(len(targets))
		for try := 0; targets[ti].token == santa.token && try < config.MaxCollisionRedraws; try++ {
			ti = e.intN(len(targets))
		}
		if targets[ti].token == santa.token {
			ti = e.pickOther(targets, santa.token)
		}

		if ti < 0 {
			// Only the santa's own partner is left: trade with an earlier commit.
			k := e.intN(len(commits))
			commits = append(commits, commit{giver: targets[0], recipient: commits[k].recipient})
			commits[k].recipient = santa
			ti = 0
		} else {
			commits = append(commits, commit{giver: targets[ti], recipient: santa})
		}

		santas = removeAt(santas, si)
		targets = removeAt(targets, ti)
	}

	out := make([]Assignment, len(commits))
	for i, c := range commits {
		out[i] = Assignment{Giver: c.giver.profile, Recipient: c.recipient.profile}
	}
	return out
}

// pickOther returns a uniform index among candidates whose token differs,
// or -1 when there is none.
func (e *Engine) pickOther(cands []candidate, token string) int {
	valid := make([]int, 0, len(cands))
	for i, c := range cands {
		if c.token != token {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return -1
	}
	return valid[e.intN(len(valid))]
}

func removeAt(cands []candidate, i int) []candidate {
	cands[i] = cands[len(cands)-1]
	return cands[:len(cands)-1]
}

// restAssignments links the rest participant with a random paired one in
// both directions.
func (e *Engine) restAssignments(pairs []Pair, rest models.CompleteProfile) []Assignment {
	paired := make([]models.CompleteProfile, 0, 2*len(pairs))
	for _, p := range pairs {
		paired = append(paired, p.Santa, p.Target)
	}
	chosen := paired[e.intN(len(paired))]
	return []Assignment{
		{Giver: rest, Recipient: chosen, Kind: KindRegular},
		{Giver: chosen, Recipient: rest, Kind: KindRest},
	}
}
