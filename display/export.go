package display

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/s0up4200/sc2kit/pandascore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExportFormat selects the export encoding
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ParseExportFormat parses "json" or "csv", case-insensitively
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use json or csv)", s)
	}
}

// DefaultOutputPath names the export file for a data kind
func DefaultOutputPath(kind string, format ExportFormat) string {
	return fmt.Sprintf("%s_export.%s", kind, format)
}

// Exporter writes models as JSON or CSV
type Exporter struct {
	Format  ExportFormat
	Verbose bool
	// Location is used for CSV dates; JSON dates are always UTC RFC 3339
	Location *time.Location
}

type exportedMatch struct {
	ID        int              `json:"id"`
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	BeginAt   *pandascore.Time `json:"begin_at,omitempty"`
	Opponents []string         `json:"opponents"`
	Winner    *string          `json:"winner,omitempty"`
	Scores    []int            `json:"scores"`
}

type exportedPlayer struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	FullName    *string `json:"full_name,omitempty"`
	Nationality *string `json:"nationality,omitempty"`
	Age         *int    `json:"age,omitempty"`
	Team        *string `json:"team,omitempty"`
}

type exportedTournament struct {
	ID        int              `json:"id"`
	Name      string           `json:"name"`
	Tier      *string          `json:"tier,omitempty"`
	BeginAt   *pandascore.Time `json:"begin_at,omitempty"`
	EndAt     *pandascore.Time `json:"end_at,omitempty"`
	Prizepool *string          `json:"prizepool,omitempty"`
	Teams     int              `json:"teams"`
}

// Matches writes matches to w
func (e Exporter) Matches(w io.Writer, matches []pandascore.Match) error {
	if e.Format == FormatCSV {
		return e.writeCSV(w,
			[]string{"ID", "Name", "Status", "Date", "Player1", "Player2", "Score1", "Score2", "Winner", "Duration"},
			len(matches),
			func(i int) []string {
				m := matches[i]
				names := []string{"TBD", "TBD"}
				for j := 0; j < len(m.Opponents) && j < 2; j++ {
					names[j] = m.Opponents[j].Opponent.Name
				}
				scores := []string{"0", "0"}
				for j := 0; j < len(m.Results) && j < 2; j++ {
					scores[j] = strconv.Itoa(m.Results[j].Score)
				}
				duration := ""
				if d, ok := m.Duration(); ok {
					duration = FormatDuration(d)
				}
				return []string{
					strconv.Itoa(m.ID), m.Name, string(m.Status), e.date(m.BeginAt),
					names[0], names[1], scores[0], scores[1], m.WinnerName(), duration,
				}
			})
	}

	if e.Verbose {
		return writeJSON(w, matches)
	}

	out := make([]exportedMatch, 0, len(matches))
	for _, m := range matches {
		scores := make([]int, 0, len(m.Results))
		for _, r := range m.Results {
			scores = append(scores, r.Score)
		}
		opponents := make([]string, 0, len(m.Opponents))
		for _, o := range m.Opponents {
			opponents = append(opponents, o.Opponent.Name)
		}
		var winner *string
		if name := m.WinnerName(); name != "" {
			winner = &name
		}
		out = append(out, exportedMatch{
			ID:        m.ID,
			Name:      m.Name,
			Status:    string(m.Status),
			BeginAt:   m.BeginAt,
			Opponents: opponents,
			Winner:    winner,
			Scores:    scores,
		})
	}
	return writeJSON(w, out)
}

// Players writes players to w
func (e Exporter) Players(w io.Writer, players []pandascore.Player) error {
	if e.Format == FormatCSV {
		return e.writeCSV(w,
			[]string{"ID", "Name", "Full Name", "Nationality", "Age", "Team"},
			len(players),
			func(i int) []string {
				p := players[i]
				age := ""
				if p.Age != nil {
					age = strconv.Itoa(*p.Age)
				}
				team := ""
				if p.CurrentTeam != nil {
					team = p.CurrentTeam.Name
				}
				return []string{strconv.Itoa(p.ID), p.Name, p.DisplayName(), deref(p.Nationality), age, team}
			})
	}

	if e.Verbose {
		return writeJSON(w, players)
	}

	out := make([]exportedPlayer, 0, len(players))
	for _, p := range players {
		ep := exportedPlayer{
			ID:          p.ID,
			Name:        p.Name,
			Nationality: p.Nationality,
			Age:         p.Age,
		}
		if full, ok := p.FullName(); ok {
			ep.FullName = &full
		}
		if p.CurrentTeam != nil {
			team := p.CurrentTeam.Name
			ep.Team = &team
		}
		out = append(out, ep)
	}
	return writeJSON(w, out)
}

// Tournaments writes tournaments to w
func (e Exporter) Tournaments(w io.Writer, tournaments []pandascore.Tournament) error {
	if e.Format == FormatCSV {
		return e.writeCSV(w,
			[]string{"ID", "Name", "Tier", "Start Date", "End Date", "Prize Pool", "Teams"},
			len(tournaments),
			func(i int) []string {
				t := tournaments[i]
				return []string{
					strconv.Itoa(t.ID), t.Name, deref(t.Tier), e.date(t.BeginAt), e.date(t.EndAt),
					deref(t.Prizepool), strconv.Itoa(t.TeamCount()),
				}
			})
	}

	if e.Verbose {
		return writeJSON(w, tournaments)
	}

	out := make([]exportedTournament, 0, len(tournaments))
	for _, t := range tournaments {
		out = append(out, exportedTournament{
			ID:        t.ID,
			Name:      t.Name,
			Tier:      t.Tier,
			BeginAt:   t.BeginAt,
			EndAt:     t.EndAt,
			Prizepool: t.Prizepool,
			Teams:     t.TeamCount(),
		})
	}
	return writeJSON(w, out)
}

func (e Exporter) date(t *pandascore.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateTimeLayout)
}

func (e Exporter) writeCSV(w io.Writer, header []string, n int, row func(int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range n {
		if err := cw.Write(row(i)); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
