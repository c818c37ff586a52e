package pandascore

import (
	"strings"
	"time"
)

// MatchStatus represents the lifecycle state of a match or game
type MatchStatus string

const (
	MatchStatusNotStarted MatchStatus = "not_started"
	MatchStatusRunning    MatchStatus = "running"
	MatchStatusFinished   MatchStatus = "finished"
)

// String returns a display label for the status
func (s MatchStatus) String() string {
	switch s {
	case MatchStatusNotStarted:
		return "NOT_STARTED"
	case MatchStatusRunning:
		return "LIVE"
	case MatchStatusFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Match is a StarCraft II match between two or more opponents
type Match struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Status        MatchStatus   `json:"status"`
	TournamentID  int           `json:"tournament_id"`
	SerieID       int           `json:"serie_id"`
	BeginAt       *Time         `json:"begin_at"`
	EndAt         *Time         `json:"end_at"`
	NumberOfGames int           `json:"number_of_games"`
	Games         []Game        `json:"games"`
	Opponents     []Opponent    `json:"opponents"`
	Results       []MatchResult `json:"results"`
	Winner        *Winner       `json:"winner"`
	WinnerID      *int          `json:"winner_id"`
	Live          *LiveData     `json:"live"`
	Streams       []Stream      `json:"streams_list"`
	ModifiedAt    Time          `json:"modified_at"`
}

// Game is a single game within a match
type Game struct {
	ID         int         `json:"id"`
	BeginAt    *Time       `json:"begin_at"`
	EndAt      *Time       `json:"end_at"`
	Complete   bool        `json:"complete"`
	Finished   bool        `json:"finished"`
	Forfeit    bool        `json:"forfeit"`
	Length     *int        `json:"length"`
	Position   int         `json:"position"`
	Status     MatchStatus `json:"status"`
	Winner     *GameWinner `json:"winner"`
	WinnerType *string     `json:"winner_type"`
}

// GameWinner identifies the winner of a game
type GameWinner struct {
	ID   *int   `json:"id"`
	Type string `json:"type"`
}

// Opponent is a match participant. Type is either "Player" or "Team".
type Opponent struct {
	Opponent OpponentDetails `json:"opponent"`
	Type     string          `json:"type"`
}

// OpponentDetails holds the player or team fields embedded in an opponent
type OpponentDetails struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	ImageURL    *string `json:"image_url"`
	Acronym     *string `json:"acronym"`
	Location    *string `json:"location"`
	Active      *bool   `json:"active"`
	Role        *string `json:"role"`
	ModifiedAt  *Time   `json:"modified_at"`
	Birthday    *Time   `json:"birthday"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Nationality *string `json:"nationality"`
	Age         *int    `json:"age"`
}

// MatchResult is the score of one opponent
type MatchResult struct {
	Score    int  `json:"score"`
	TeamID   *int `json:"team_id"`
	PlayerID *int `json:"player_id"`
}

// Winner identifies the winner of a match
type Winner struct {
	ID   int     `json:"id"`
	Type *string `json:"type"`
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

// LiveData describes live coverage availability
type LiveData struct {
	Supported bool    `json:"supported"`
	OpensAt   *Time   `json:"opens_at"`
	URL       *string `json:"url"`
}

// Stream is a broadcast of a match
type Stream struct {
	Language string  `json:"language"`
	Main     bool    `json:"main"`
	Official bool    `json:"official"`
	RawURL   string  `json:"raw_url"`
	EmbedURL *string `json:"embed_url"`
}

// IsLive reports whether the match is running
func (m Match) IsLive() bool {
	return m.Status == MatchStatusRunning
}

// HasEnded reports whether the match is finished
func (m Match) HasEnded() bool {
	return m.Status == MatchStatusFinished
}

// IsPending reports whether the match has not started yet
func (m Match) IsPending() bool {
	return m.Status == MatchStatusNotStarted
}

// Duration returns end minus begin when both are known
func (m Match) Duration() (time.Duration, bool) {
	return span(m.BeginAt, m.EndAt)
}

// OpponentNames returns the display names of all opponents in order
func (m Match) OpponentNames() []string {
	names := make([]string, 0, len(m.Opponents))
	for _, o := range m.Opponents {
		names = append(names, o.Opponent.DisplayName())
	}
	return names
}

// Score returns the score of the opponent with the given ID
func (m Match) Score(opponentID int) (int, bool) {
	for _, r := range m.Results {
		if (r.PlayerID != nil && *r.PlayerID == opponentID) || (r.TeamID != nil && *r.TeamID == opponentID) {
			return r.Score, true
		}
	}
	return 0, false
}

// Involves reports whether any opponent name contains name, ignoring case
func (m Match) Involves(name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return false
	}
	for _, o := range m.Opponents {
		if strings.Contains(strings.ToLower(o.Opponent.Name), needle) {
			return true
		}
	}
	return false
}

// HasStreams reports whether any stream is listed
func (m Match) HasStreams() bool {
	return len(m.Streams) > 0
}

// MainStream returns the stream flagged as main, falling back to the first
func (m Match) MainStream() (Stream, bool) {
	for _, s := range m.Streams {
		if s.Main {
			return s, true
		}
	}
	if len(m.Streams) > 0 {
		return m.Streams[0], true
	}
	return Stream{}, false
}

// WinnerName returns the winner's name if known
func (m Match) WinnerName() string {
	if m.Winner != nil && m.Winner.Name != nil {
		return *m.Winner.Name
	}
	if m.WinnerID != nil {
		for _, o := range m.Opponents {
			if o.Opponent.ID == *m.WinnerID {
				return o.Opponent.Name
			}
		}
	}
	return ""
}

// DisplayName returns the acronym for teams and the handle otherwise
func (d OpponentDetails) DisplayName() string {
	if d.Acronym != nil && *d.Acronym != "" {
		return *d.Acronym
	}
	return d.Name
}

func span(begin, end *Time) (time.Duration, bool) {
	if begin == nil || end == nil || begin.IsZero() || end.IsZero() {
		return 0, false
	}
	return end.Sub(begin.Time), true
}

// GetID returns the match ID
func (m Match) GetID() int { return m.ID }
