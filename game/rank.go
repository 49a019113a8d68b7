package game

import (
	"fmt"
	"sort"

	"github.com/amirrezam75/coinrace/pkg/logx"
	"go.uber.org/zap"
)

// Standing is the part of a player that ranking looks at.
type Standing struct {
	ID    string
	Score int
}

// Rank places self among others using competition ranking: equal scores
// share a rank and the next rank skips by the size of the tie, so scores
// [10, 10, 8] rank 1, 1, 3. The result reads "Rank: R/T".
func Rank(self Standing, others []Standing) string {
	total := len(others) + 1

	standings := make([]Standing, 0, total)
	standings = append(standings, others...)
	standings = append(standings, self)
	selfIndex := len(standings) - 1

	order := make([]int, total)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return standings[order[i]].Score > standings[order[j]].Score
	})

	rank := 1
	for i := 0; i < total; {
		tied := tieLength(standings, order, i)
		for _, idx := range order[i : i+tied] {
			if idx == selfIndex {
				return fmt.Sprintf("Rank: %d/%d", rank, total)
			}
		}
		rank += tied
		i += tied
	}

	// self is always part of standings, so this is a bookkeeping bug.
	logx.Logger.Errorw(
		"could not find player while ranking",
		zap.String("playerId", self.ID),
		zap.Int("players", total),
	)

	return fmt.Sprintf("Rank: %d/%d", rank, total)
}

// tieLength counts the entries from start on that share its score.
func tieLength(standings []Standing, order []int, start int) int {
	score := standings[order[start]].Score
	end := start + 1
	for end < len(order) && standings[order[end]].Score == score {
		end++
	}
	return end - start
}
