package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

type OptionTally struct {
	OptionID   string
	Title      string
	Position   int
	Count      int
	TotalScore int
}

// Mean is zero for an option nobody has scored yet.
func (t OptionTally) Mean() float64 {
	if t.Count == 0 {
		return 0
	}
	return float64(t.TotalScore) / float64(t.Count)
}

type VoteResults struct {
	VoteID        string
	Status        VoteStatus
	ResponseCount int
	Options       []OptionTally
}

// Tally folds accepted response sets into per-option totals. Every option is
// present in the output, ordered by position.
func Tally(options []VoteOption, sets []ResponseSet) []OptionTally {
	index := make(map[string]int, len(options))
	tallies := make([]OptionTally, 0, len(options))
	for _, option := range sortedOptions(options) {
		index[option.OptionID] = len(tallies)
		tallies = append(tallies, OptionTally{
			OptionID: option.OptionID,
			Title:    option.Title,
			Position: option.Position,
		})
	}
	for _, set := range sets {
		for optionID, score := range set.Values {
			position, ok := index[optionID]
			if !ok {
				continue
			}
			tallies[position].Count++
			tallies[position].TotalScore += score
		}
	}
	return tallies
}

func sortedOptions(options []VoteOption) []VoteOption {
	items := append([]VoteOption(nil), options...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position == items[j].Position {
			return items[i].OptionID < items[j].OptionID
		}
		return items[i].Position < items[j].Position
	})
	return items
}

type ResultSnapshot struct {
	VoteID        string
	Status        VoteStatus
	ResponseCount int
	Options       []OptionTally
	InputsHash    string
	TakenAt       time.Time
}

// InputsHash fingerprints the response set IDs a snapshot was computed from,
// independent of their order.
func InputsHash(responseSetIDs []string) string {
	ids := append([]string(nil), responseSetIDs...)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(sum[:])
}
