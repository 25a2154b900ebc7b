// Package lottery draws giveaway winners from reaction participants.
package lottery

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/tsgs/tsgsbot/internal/platform"
)

var errInvalidBound = errors.New("invalid random bound")

// Entrant is one distinct human participant.
type Entrant struct {
	UserID   string
	Username string
}

// DrawResult is the outcome of a draw.
type DrawResult struct {
	Winners      []Entrant
	Participants int
}

// WinnerIDs returns the winners' user ids in draw order.
func (r DrawResult) WinnerIDs() []string {
	ids := make([]string, 0, len(r.Winners))
	for _, w := range r.Winners {
		ids = append(ids, w.UserID)
	}
	return ids
}

// Mentions renders the winners for a message, or "No winners".
func (r DrawResult) Mentions() string {
	if len(r.Winners) == 0 {
		return "No winners"
	}
	parts := make([]string, 0, len(r.Winners))
	for _, w := range r.Winners {
		parts = append(parts, "<@"+w.UserID+">")
	}
	return strings.Join(parts, ", ")
}

var drawRandomInt = secureRandomInt

// Eligible drops bot accounts and repeated ids, keeping first-seen order.
func Eligible(users []platform.User) []Entrant {
	seen := make(map[string]struct{}, len(users))
	entrants := make([]Entrant, 0, len(users))
	for _, u := range users {
		if u.Bot || u.ID == "" {
			continue
		}
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		entrants = append(entrants, Entrant{UserID: u.ID, Username: u.Username})
	}
	return entrants
}

// DrawWinners shuffles the eligible reactors uniformly and returns the first
// min(winnerCount, participants) of them.
func DrawWinners(users []platform.User, winnerCount int) (*DrawResult, error) {
	entrants := Eligible(users)
	result := &DrawResult{Participants: len(entrants), Winners: []Entrant{}}
	if winnerCount <= 0 || len(entrants) == 0 {
		return result, nil
	}

	// Fisher-Yates
	for i := len(entrants) - 1; i > 0; i-- {
		j, err := drawRandomInt(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to shuffle entrants: %w", err)
		}
		entrants[i], entrants[j] = entrants[j], entrants[i]
	}

	result.Winners = entrants[:min(winnerCount, len(entrants))]
	return result, nil
}

func secureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, errInvalidBound
	}

	n, err := crand.Int(crand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
