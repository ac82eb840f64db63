// Package agents holds the analysis agents of a pricing run: three domain
// analysts producing reports and the strategist producing recommendations.
package agents

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pricewise/internal/domain/catalog"
	"pricewise/internal/domain/cogs"
	"pricewise/internal/domain/competitor"
	"pricewise/internal/domain/order"
)

// Goal is a business goal tag stored in user settings.
type Goal string

const (
	GoalMaximizeRevenue  Goal = "maximize_revenue"
	GoalMaximizeMargin   Goal = "maximize_margin"
	GoalGrowVolume       Goal = "grow_volume"
	GoalMatchCompetitors Goal = "match_competitors"
)

func (g Goal) valid() bool {
	switch g {
	case GoalMaximizeRevenue, GoalMaximizeMargin, GoalGrowVolume, GoalMatchCompetitors:
		return true
	}
	return false
}

// ParseGoals normalizes tags, dropping unknown and duplicate ones.
func ParseGoals(tags []string) []Goal {
	seen := make(map[Goal]bool, len(tags))
	out := make([]Goal, 0, len(tags))
	for _, tag := range tags {
		g := Goal(strings.ToLower(strings.TrimSpace(tag)))
		if !g.valid() || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func hasGoal(goals []Goal, g Goal) bool {
	for _, x := range goals {
		if x == g {
			return true
		}
	}
	return false
}

func goalStrings(goals []Goal) []string {
	out := make([]string, len(goals))
	for i, g := range goals {
		out[i] = string(g)
	}
	return out
}

// UserContext is the read-only snapshot the domain analysts work from.
// It is collected once per run and shared by concurrent analysts.
type UserContext struct {
	UserID       uuid.UUID
	BatchID      string
	BusinessName string
	Goals        []Goal
	Items        []*catalog.Item
	Competitors  []*competitor.Item
	COGS         []*cogs.Week
	Orders       *order.Stats
	CollectedAt  time.Time
}

// Categories returns the distinct item categories, sorted.
func (uc *UserContext) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range uc.Items {
		c := strings.TrimSpace(it.Category)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
