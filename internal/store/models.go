package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Team struct {
	ID         string `gorm:"primaryKey"`
	ExternalID string `gorm:"index"`
	Name       string `gorm:"not null"`
	LogoURL    string
	Rating     int `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Match is a live external match. Radiant is the first side, Dire the second;
// the order decides which seats each team gets in a room.
type Match struct {
	ID            string `gorm:"primaryKey"`
	ExternalID    string `gorm:"index;not null"`
	StartedAt     time.Time
	RadiantTeamID string `gorm:"not null"`
	RadiantTeam   Team   `gorm:"foreignKey:RadiantTeamID"`
	RadiantScore  int    `gorm:"not null;default:0"`
	DireTeamID    string `gorm:"not null"`
	DireTeam      Team   `gorm:"foreignKey:DireTeamID"`
	DireScore     int    `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (m Match) TeamIDs() [2]string { return [2]string{m.RadiantTeamID, m.DireTeamID} }

// Scores maps team id to the upstream score.
func (m Match) Scores() map[string]int {
	return map[string]int{m.RadiantTeamID: m.RadiantScore, m.DireTeamID: m.DireScore}
}

type Room struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	MatchID        string `gorm:"index;not null"`
	MatchServerURL string `gorm:"index"`
	ChatServerURL  string
}

type User struct {
	ID        string `gorm:"primaryKey"`
	Nickname  string `gorm:"size:64;not null"`
	Email     string `gorm:"index;not null"`
	PhotoURL  string
	Rating    int `gorm:"not null;default:0"`
	CountryID *string
	UnbanAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLeaver reports whether the user is still serving a leave penalty.
func (u User) IsLeaver(now time.Time) bool {
	return u.UnbanAt != nil && now.Before(*u.UnbanAt)
}

type Item struct {
	ID       string `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Behavior int    `gorm:"not null"` // 0 defensive, 1 offensive
	Price    int    `gorm:"not null"`
	PhotoURL string `gorm:"not null"`
}

type Country struct {
	ID      string `gorm:"primaryKey"`
	Name    string `gorm:"index;not null"`
	FlagURL string `gorm:"not null"`
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (t *Team) BeforeCreate(*gorm.DB) error    { newID(&t.ID); return nil }
func (m *Match) BeforeCreate(*gorm.DB) error   { newID(&m.ID); return nil }
func (r *Room) BeforeCreate(*gorm.DB) error    { newID(&r.ID); return nil }
func (u *User) BeforeCreate(*gorm.DB) error    { newID(&u.ID); return nil }
func (i *Item) BeforeCreate(*gorm.DB) error    { newID(&i.ID); return nil }
func (c *Country) BeforeCreate(*gorm.DB) error { newID(&c.ID); return nil }

func allModels() []any {
	return []any{&Team{}, &Match{}, &Room{}, &User{}, &Item{}, &Country{}}
}
