package engine

func NewCharacter(id, teamID, userID string, r Rules) Character {
	return Character{
		ID:     id,
		TeamID: teamID,
		UserID: userID,
		Health: r.MaxHealth,
		Items:  map[string]int{},
	}
}

func DefaultRules() Rules {
	return Rules{MaxHealth: 100, HealAmount: 20, OffensivePower: 16}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
