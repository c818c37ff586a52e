package pandascore

import (
	"regexp"
	"strconv"
	"time"
)

// Player is a professional StarCraft II player
type Player struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	FirstName        *string    `json:"first_name"`
	LastName         *string    `json:"last_name"`
	Role             *string    `json:"role"`
	Nationality      *string    `json:"nationality"`
	ImageURL         *string    `json:"image_url"`
	CurrentTeam      *Team      `json:"current_team"`
	CurrentVideogame *Videogame `json:"current_videogame"`
	Age              *int       `json:"age"`
	Birthday         *Time      `json:"birthday"`
	Hometown         *string    `json:"hometown"`
}

// Team is a professional team
type Team struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Acronym          *string    `json:"acronym"`
	ImageURL         *string    `json:"image_url"`
	Location         *string    `json:"location"`
	Players          []Player   `json:"players"`
	CurrentVideogame *Videogame `json:"current_videogame"`
	ModifiedAt       *Time      `json:"modified_at"`
}

// League is a recurring competition organizer
type League struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	ImageURL   *string `json:"image_url"`
	ModifiedAt Time    `json:"modified_at"`
}

// Series is a season or edition of a league
type Series struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	BeginAt     *Time        `json:"begin_at"`
	EndAt       *Time        `json:"end_at"`
	LeagueID    int          `json:"league_id"`
	Tournaments []Tournament `json:"tournaments"`
	Year        *int         `json:"year"`
	Season      *string      `json:"season"`
	FullName    string       `json:"full_name"`
	WinnerID    *int         `json:"winner_id"`
	WinnerType  *string      `json:"winner_type"`
	ModifiedAt  Time         `json:"modified_at"`
	Description *string      `json:"description"`
	Tier        *string      `json:"tier"`
}

// Tournament is a stage of a series
type Tournament struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	BeginAt       *Time   `json:"begin_at"`
	EndAt         *Time   `json:"end_at"`
	SerieID       int     `json:"serie_id"`
	LeagueID      int     `json:"league_id"`
	LiveSupported bool    `json:"live_supported"`
	Prizepool     *string `json:"prizepool"`
	Teams         []Team  `json:"teams"`
	WinnerID      *int    `json:"winner_id"`
	WinnerType    *string `json:"winner_type"`
	ModifiedAt    Time    `json:"modified_at"`
	Tier          *string `json:"tier"`
	HasBracket    bool    `json:"has_bracket"`
}

// Videogame identifies the game title
type Videogame struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ErrorResponse is the body PandaScore returns on failed calls
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FullName returns "first last" when both are known
func (p Player) FullName() (string, bool) {
	if p.FirstName == nil || p.LastName == nil {
		return "", false
	}
	return *p.FirstName + " " + *p.LastName, true
}

// DisplayName returns the full name or the handle
func (p Player) DisplayName() string {
	if full, ok := p.FullName(); ok {
		return full
	}
	return p.Name
}

// HasTeam reports whether the player is currently on a team
func (p Player) HasTeam() bool {
	return p.CurrentTeam != nil
}

// DisplayName returns the acronym or the name
func (t Team) DisplayName() string {
	if t.Acronym != nil {
		return *t.Acronym
	}
	return t.Name
}

// RosterSize returns the number of listed players
func (t Team) RosterSize() int {
	return len(t.Players)
}

// HasRoster reports whether any player is listed
func (t Team) HasRoster() bool {
	return t.RosterSize() > 0
}

// IsRunning reports whether now falls inside the series window
func (s Series) IsRunning(now time.Time) bool {
	return windowRunning(s.BeginAt, s.EndAt, now)
}

// HasEnded reports whether the series ended before now
func (s Series) HasEnded(now time.Time) bool {
	return windowEnded(s.EndAt, now)
}

// IsPending reports whether the series starts after now
func (s Series) IsPending(now time.Time) bool {
	return windowPending(s.BeginAt, now)
}

// Duration returns end minus begin when both are known
func (s Series) Duration() (time.Duration, bool) {
	return span(s.BeginAt, s.EndAt)
}

// TournamentCount returns the number of embedded tournaments
func (s Series) TournamentCount() int {
	return len(s.Tournaments)
}

// IsRunning reports whether now falls inside the tournament window
func (t Tournament) IsRunning(now time.Time) bool {
	return windowRunning(t.BeginAt, t.EndAt, now)
}

// HasEnded reports whether the tournament ended before now
func (t Tournament) HasEnded(now time.Time) bool {
	return windowEnded(t.EndAt, now)
}

// IsPending reports whether the tournament starts after now
func (t Tournament) IsPending(now time.Time) bool {
	return windowPending(t.BeginAt, now)
}

// Duration returns end minus begin when both are known
func (t Tournament) Duration() (time.Duration, bool) {
	return span(t.BeginAt, t.EndAt)
}

// TeamCount returns the number of embedded teams
func (t Tournament) TeamCount() int {
	return len(t.Teams)
}

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

// PrizepoolAmount extracts the numeric amount from a prizepool such as
// "10,000 United States Dollar".
func (t Tournament) PrizepoolAmount() (float64, bool) {
	if t.Prizepool == nil {
		return 0, false
	}
	amount, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(*t.Prizepool, ""), 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

func windowRunning(begin, end *Time, now time.Time) bool {
	if begin == nil || begin.IsZero() {
		return false
	}
	if end != nil && !end.IsZero() {
		return !now.Before(begin.Time) && !now.After(end.Time)
	}
	return !now.Before(begin.Time)
}

func windowEnded(end *Time, now time.Time) bool {
	if end == nil || end.IsZero() {
		return false
	}
	return now.After(end.Time)
}

func windowPending(begin *Time, now time.Time) bool {
	if begin == nil || begin.IsZero() {
		return false
	}
	return now.Before(begin.Time)
}

// GetID returns the player ID
func (p Player) GetID() int { return p.ID }

// GetID returns the team ID
func (t Team) GetID() int { return t.ID }

// GetID returns the league ID
func (l League) GetID() int { return l.ID }

// GetID returns the series ID
func (s Series) GetID() int { return s.ID }

// GetID returns the tournament ID
func (t Tournament) GetID() int { return t.ID }
