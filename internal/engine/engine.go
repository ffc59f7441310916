package engine

import (
	"errors"
	"maps"
)

var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrNoItem = errors.New("item not owned")
var ErrHealthFull = errors.New("health already full")
var ErrCharacterDown = errors.New("character is down")
var ErrWrongBehavior = errors.New("item cannot be used this way")
var ErrUnsupportedCommand = errors.New("unsupported command")

type ItemBehavior int

const (
	BehaviorDefensive ItemBehavior = 0
	BehaviorOffensive ItemBehavior = 1
)

func (b ItemBehavior) String() string {
	switch b {
	case BehaviorDefensive:
		return "defensive"
	case BehaviorOffensive:
		return "offensive"
	default:
		return "unknown"
	}
}

type Item struct {
	ID       string
	Name     string
	Behavior ItemBehavior
	Price    int
	PhotoURL string
}

type Rules struct {
	MaxHealth      int
	HealAmount     int
	OffensivePower int
}

// Character is a connection's in-room avatar. SeatID 0 means not seated.
type Character struct {
	ID     string
	TeamID string
	UserID string
	Health int
	Money  int
	SeatID int
	Items  map[string]int
}

func (c Character) Down() bool { return c.Health <= 0 }

func (c Character) Count(itemID string) int { return c.Items[itemID] }

type CommandType string

const (
	CmdBuyItem    CommandType = "BuyItem"
	CmdUseDefense CommandType = "UseDefense"
	CmdFire       CommandType = "Fire"
	CmdTakeHit    CommandType = "TakeHit"
	CmdGrantMoney CommandType = "GrantMoney"
)

/*
	CmdBuyItem    -> EvtItemBought
	CmdUseDefense -> EvtHealed
	CmdFire       -> EvtProjectileFired (damage lands later through CmdTakeHit)
	CmdTakeHit    -> EvtDamaged -> EvtKnockedOut when health reaches 0
	CmdGrantMoney -> EvtMoneyGranted
*/

type Command struct {
	Type   CommandType
	Item   Item
	Amount int
}

type EventType string

const (
	EvtItemBought      EventType = "ItemBought"
	EvtHealed          EventType = "Healed"
	EvtProjectileFired EventType = "ProjectileFired"
	EvtDamaged         EventType = "Damaged"
	EvtKnockedOut      EventType = "KnockedOut"
	EvtMoneyGranted    EventType = "MoneyGranted"
)

type Event struct {
	Type   EventType
	ItemID string
	Amount int
}

// Apply validates cmd against c and returns the resulting character. On error
// the returned character is c unchanged.
func Apply(c Character, r Rules, cmd Command) ([]Event, Character, error) {
	// Grants are the only thing a downed character still receives.
	if c.Down() && cmd.Type != CmdGrantMoney {
		return nil, c, ErrCharacterDown
	}

	next := c
	next.Items = maps.Clone(c.Items)
	if next.Items == nil {
		next.Items = map[string]int{}
	}

	switch cmd.Type {
	case CmdBuyItem:
		if c.Money < cmd.Item.Price {
			return nil, c, ErrInsufficientFunds
		}
		next.Money -= cmd.Item.Price
		next.Items[cmd.Item.ID]++
		return []Event{{Type: EvtItemBought, ItemID: cmd.Item.ID, Amount: cmd.Item.Price}}, next, nil

	case CmdUseDefense:
		if cmd.Item.Behavior != BehaviorDefensive {
			return nil, c, ErrWrongBehavior
		}
		if c.Count(cmd.Item.ID) <= 0 {
			return nil, c, ErrNoItem
		}
		if c.Health >= r.MaxHealth {
			return nil, c, ErrHealthFull
		}
		next.Health = clamp(c.Health+r.HealAmount, 0, r.MaxHealth)
		next.Items[cmd.Item.ID]--
		return []Event{{Type: EvtHealed, ItemID: cmd.Item.ID, Amount: next.Health - c.Health}}, next, nil

	case CmdFire:
		if cmd.Item.Behavior != BehaviorOffensive {
			return nil, c, ErrWrongBehavior
		}
		if c.Count(cmd.Item.ID) <= 0 {
			return nil, c, ErrNoItem
		}
		next.Items[cmd.Item.ID]--
		return []Event{{Type: EvtProjectileFired, ItemID: cmd.Item.ID}}, next, nil

	case CmdTakeHit:
		next.Health = clamp(c.Health-r.OffensivePower, 0, r.MaxHealth)
		events := []Event{{Type: EvtDamaged, Amount: c.Health - next.Health}}
		if next.Down() {
			events = append(events, Event{Type: EvtKnockedOut})
		}
		return events, next, nil

	case CmdGrantMoney:
		if cmd.Amount <= 0 {
			return nil, c, nil
		}
		next.Money += cmd.Amount
		return []Event{{Type: EvtMoneyGranted, Amount: cmd.Amount}}, next, nil

	default:
		return nil, c, ErrUnsupportedCommand
	}
}
