package session

import (
	"encoding/json"
	"fmt"
)

// Memory-match runs one full board per trial. The server deals the cards in
// the trial's extra payload; all flipping happens client-side and only the
// finished board (or a timeout) produces a submission.

// Card is one face-down card on the board.
type Card struct {
	ID     string `json:"id"`
	Emoji  string `json:"emoji"`
	PairID string `json:"pair_id"`
}

type boardExtra struct {
	NumPairs int    `json:"num_pairs"`
	GridCols int    `json:"grid_cols"`
	GridRows int    `json:"grid_rows"`
	Cards    []Card `json:"cards"`
}

// BoardFromTrial reads the card layout out of a memory-match trial.
func BoardFromTrial(t *Trial) (*Board, error) {
	if t == nil || len(t.Extra) == 0 {
		return nil, fmt.Errorf("trial has no board payload")
	}
	var extra boardExtra
	if err := json.Unmarshal(t.Extra, &extra); err != nil {
		return nil, fmt.Errorf("bad board payload: %w", err)
	}
	if len(extra.Cards) == 0 {
		return nil, fmt.Errorf("board has no cards")
	}
	cols := extra.GridCols
	if cols <= 0 {
		cols = 4
	}
	return NewBoard(extra.Cards, cols), nil
}

// Board is the client-local pair-matching sub-state. The server is not
// involved until Complete (or the external timer) ends the board.
type Board struct {
	cards   []Card
	cols    int
	faceUp  []string        // card ids currently revealed, at most two
	matched map[string]bool // card id -> permanently revealed
	moves   int             // flip-pairs attempted
}

func NewBoard(cards []Card, cols int) *Board {
	return &Board{
		cards:   cards,
		cols:    cols,
		matched: make(map[string]bool),
	}
}

func (b *Board) Cards() []Card { return b.cards }
func (b *Board) Cols() int     { return b.cols }
func (b *Board) Moves() int    { return b.moves }

func (b *Board) TotalPairs() int { return len(b.cards) / 2 }

func (b *Board) PairsFound() int { return len(b.matched) / 2 }

// Locked reports whether flips are rejected: two cards are face up and the
// pending pair must resolve first.
func (b *Board) Locked() bool { return len(b.faceUp) == 2 }

// Matched reports whether a card's pair has been found.
func (b *Board) Matched(cardID string) bool { return b.matched[cardID] }

// FaceUp reports whether a card is currently revealed, matched or pending.
func (b *Board) FaceUp(cardID string) bool {
	if b.matched[cardID] {
		return true
	}
	for _, id := range b.faceUp {
		if id == cardID {
			return true
		}
	}
	return false
}

// Flip reveals a card. It returns true when this flip completed a pending
// pair and Resolve must be called after the reveal delay. Flips on locked
// boards, matched cards and already-face-up cards are ignored.
func (b *Board) Flip(cardID string) bool {
	if b.Locked() || b.matched[cardID] || b.Complete() {
		return false
	}
	for _, id := range b.faceUp {
		if id == cardID {
			return false
		}
	}
	var found bool
	for _, c := range b.cards {
		if c.ID == cardID {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	b.faceUp = append(b.faceUp, cardID)
	if len(b.faceUp) == 2 {
		b.moves++
		return true
	}
	return false
}

// Resolve settles the pending pair: a match stays revealed, a mismatch goes
// face down again. Returns whether the pair matched.
func (b *Board) Resolve() bool {
	if len(b.faceUp) != 2 {
		return false
	}
	a, c := b.pair(b.faceUp[0]), b.pair(b.faceUp[1])
	isMatch := a != "" && a == c
	if isMatch {
		b.matched[b.faceUp[0]] = true
		b.matched[b.faceUp[1]] = true
	}
	b.faceUp = nil
	return isMatch
}

func (b *Board) pair(cardID string) string {
	for _, c := range b.cards {
		if c.ID == cardID {
			return c.PairID
		}
	}
	return ""
}

// Complete reports whether every pair has been found.
func (b *Board) Complete() bool {
	return len(b.matched) == len(b.cards) && len(b.cards) > 0
}

// Result snapshots the board for submission.
func (b *Board) Result() BoardResult {
	return BoardResult{
		PairsFound: b.PairsFound(),
		Moves:      b.moves,
		TotalPairs: b.TotalPairs(),
	}
}

// BoardResult is the composite submission for one finished (or timed out)
// board. The wire encoding is the serialization contract the server's
// memory-match plugin parses; Encode and ParseBoardResult are the only two
// places that know it.
type BoardResult struct {
	PairsFound int
	Moves      int
	TotalPairs int
}

// Encode renders the canonical wire form, e.g. "pairs:3,moves:7,total:4".
func (r BoardResult) Encode() string {
	return fmt.Sprintf("pairs:%d,moves:%d,total:%d", r.PairsFound, r.Moves, r.TotalPairs)
}

// ParseBoardResult is the inverse of Encode.
func ParseBoardResult(s string) (BoardResult, error) {
	var r BoardResult
	n, err := fmt.Sscanf(s, "pairs:%d,moves:%d,total:%d", &r.PairsFound, &r.Moves, &r.TotalPairs)
	if err != nil || n != 3 {
		return BoardResult{}, fmt.Errorf("bad board result %q", s)
	}
	return r, nil
}
