package ledger

// Tier is a chess league tier derived from total wins.
type Tier int

const (
	TierNone Tier = iota
	Tier1
	Tier2
	Tier3
	Tier4
	Tier5
	Tier6
)

var tierNames = [...]string{"None", "Wooden", "Bronze", "Silver", "Gold", "Diamond", "Grandmaster"}

// tierFloors[i] is the minimum wins for Tier(i+1).
var tierFloors = [...]int{1, 6, 11, 21, 31, 51}

func (t Tier) String() string {
	if t < TierNone || int(t) >= len(tierNames) {
		return "Unknown"
	}
	return tierNames[t]
}

// LeagueTier maps total wins to a tier. It is monotonic in wins.
func LeagueTier(wins int) Tier {
	tier := TierNone
	for i, floor := range tierFloors {
		if wins >= floor {
			tier = Tier(i + 1)
		}
	}
	return tier
}

// WinsToNextTier returns how many more wins reach the next tier, or 0 at the top.
func WinsToNextTier(wins int) int {
	for _, floor := range tierFloors {
		if wins < floor {
			return floor - wins
		}
	}
	return 0
}
