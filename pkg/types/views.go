package types

type StartData struct {
	MyCharacterID string `json:"myCharacterId"`
}

// EndData is the final outcome. WinnerID is nil on a tie.
type EndData struct {
	WinnerID      *string `json:"winnerId"`
	MyRatingDelta int     `json:"myRatingDelta"`
}

type Team struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Score   int    `json:"score"`
	LogoURL string `json:"logoUrl,omitempty"`
}

type Item struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // "offensive" | "defensive"
	Name     string `json:"name"`
	Price    int    `json:"price"`
	PhotoURL string `json:"photoUrl"`
}

type Country struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	FlagURL string `json:"flagUrl"`
}

type User struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	CountryID string `json:"countryId,omitempty"`
	Rating    int    `json:"rating"`
}

type ItemCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Character is the public view of a character. Money and Items are only set
// when the view is addressed to the owning connection.
type Character struct {
	ID     string      `json:"id"`
	TeamID string      `json:"teamId"`
	Health int         `json:"health"`
	SeatID *string     `json:"seatId"`
	Money  *int        `json:"money,omitempty"`
	Items  []ItemCount `json:"items,omitempty"`
	User   *User       `json:"user,omitempty"`
}

type Seat struct {
	ID          string  `json:"id"`
	CharacterID *string `json:"characterId"`
}

type Projectile struct {
	ID       string `json:"id"`
	TargetID string `json:"targetId"`
}
