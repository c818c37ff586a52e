package display

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/s0up4200/sc2kit/cache"
	"github.com/s0up4200/sc2kit/pandascore"
)

// ConsoleFormatter renders API models as tree-style console text
type ConsoleFormatter struct {
	loc     *time.Location
	now     func() time.Time
	details bool

	live     *color.Color
	upcoming *color.Color
	finished *color.Color
	bold     *color.Color
	accent   *color.Color
	warn     *color.Color
	muted    *color.Color
}

// Option configures a ConsoleFormatter
type Option func(*ConsoleFormatter)

// WithColor forces colors on or off regardless of the terminal
func WithColor(enabled bool) Option {
	return func(f *ConsoleFormatter) {
		for _, c := range f.colors() {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// WithLocation sets the timezone used for timestamps
func WithLocation(loc *time.Location) Option {
	return func(f *ConsoleFormatter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// WithClock replaces time.Now for relative times
func WithClock(now func() time.Time) Option {
	return func(f *ConsoleFormatter) {
		f.now = now
	}
}

// WithDetails adds games, streams and rosters to the output
func WithDetails(show bool) Option {
	return func(f *ConsoleFormatter) {
		f.details = show
	}
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(opts ...Option) *ConsoleFormatter {
	f := &ConsoleFormatter{
		loc:      time.Local,
		now:      time.Now,
		live:     color.New(color.FgHiGreen, color.Bold),
		upcoming: color.New(color.FgYellow),
		finished: color.New(color.FgHiBlack),
		bold:     color.New(color.Bold),
		accent:   color.New(color.FgCyan),
		warn:     color.New(color.FgHiYellow),
		muted:    color.New(color.FgHiBlack),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *ConsoleFormatter) colors() []*color.Color {
	return []*color.Color{f.live, f.upcoming, f.finished, f.bold, f.accent, f.warn, f.muted}
}

// Status renders a match status label
func (f *ConsoleFormatter) Status(status pandascore.MatchStatus) string {
	switch status {
	case pandascore.MatchStatusRunning:
		return f.live.Sprint("● LIVE")
	case pandascore.MatchStatusNotStarted:
		return f.upcoming.Sprint("◯ Upcoming")
	case pandascore.MatchStatusFinished:
		return f.finished.Sprint("✓ Finished")
	default:
		return string(status)
	}
}

func (f *ConsoleFormatter) stamp(t *pandascore.Time) string {
	if t == nil || t.IsZero() {
		return "TBD"
	}
	return t.In(f.loc).Format(DateTimeLayout)
}

func header(sb *strings.Builder, title string, n int) {
	fmt.Fprintf(sb, "\n%s (%d):\n\n", title, n)
}

// treeItem writes the first line of an entry and returns the indent for its detail lines
func treeItem(sb *strings.Builder, isLast bool, line string) string {
	prefix, indent := branch, indentMid
	if isLast {
		prefix, indent = lastBranch, indentLast
	}
	sb.WriteString(prefix)
	sb.WriteString(line)
	sb.WriteString("\n")
	return indent
}

func separator(sb *strings.Builder, isLast bool) {
	if !isLast {
		sb.WriteString(pipe + "\n")
	}
}

// MatchLine renders "Serral 2 - 1 Clem" or "Serral vs Clem"
func (f *ConsoleFormatter) MatchLine(m pandascore.Match) string {
	names := []string{"TBD", "TBD"}
	scores := []int{0, 0}
	for i, o := range m.Opponents {
		if i > 1 {
			break
		}
		names[i] = o.Opponent.DisplayName()
		scores[i], _ = m.Score(o.Opponent.ID)
	}

	if m.IsLive() || m.HasEnded() {
		left, right := names[0], names[1]
		switch {
		case scores[0] > scores[1]:
			left = f.bold.Sprint(left)
		case scores[1] > scores[0]:
			right = f.bold.Sprint(right)
		}
		return fmt.Sprintf("%s %d - %d %s", left, scores[0], scores[1], right)
	}
	return fmt.Sprintf("%s vs %s", names[0], names[1])
}

// FormatMatchList formats matches as a tree. tournaments maps IDs to names
// and may be nil.
func (f *ConsoleFormatter) FormatMatchList(title string, matches []pandascore.Match, tournaments map[int]string) string {
	if len(matches) == 0 {
		return "No matches found"
	}

	var sb strings.Builder
	header(&sb, title, len(matches))
	f.writeMatches(&sb, matches, tournaments)
	sb.WriteString("\n")
	return sb.String()
}

func (f *ConsoleFormatter) writeMatches(sb *strings.Builder, matches []pandascore.Match, tournaments map[int]string) {
	now := f.now()
	for i, m := range matches {
		isLast := i == len(matches)-1

		line := fmt.Sprintf("%s  %s", f.Status(m.Status), f.MatchLine(m))
		if m.NumberOfGames > 1 {
			line += f.muted.Sprintf("  Bo%d", m.NumberOfGames)
		}
		indent := treeItem(sb, isLast, line)

		if name, ok := tournaments[m.TournamentID]; ok {
			fmt.Fprintf(sb, "%sTournament: %s\n", indent, name)
		}

		switch {
		case m.IsPending() && m.BeginAt != nil && !m.BeginAt.IsZero():
			fmt.Fprintf(sb, "%sStarts: %s (%s)\n", indent, f.stamp(m.BeginAt), RelativeTime(m.BeginAt.Time, now, f.loc))
		case m.IsLive() && m.BeginAt != nil && !m.BeginAt.IsZero():
			fmt.Fprintf(sb, "%sRunning for %s\n", indent, FormatDuration(now.Sub(m.BeginAt.Time)))
		case m.HasEnded():
			parts := []string{fmt.Sprintf("Ended: %s", f.stamp(m.EndAt))}
			if d, ok := m.Duration(); ok {
				parts = append(parts, fmt.Sprintf("Duration: %s", FormatDuration(d)))
			}
			if w := m.WinnerName(); w != "" {
				parts = append(parts, fmt.Sprintf("Winner: %s", w))
			}
			fmt.Fprintf(sb, "%s%s\n", indent, strings.Join(parts, " | "))
		}

		if f.details {
			f.writeGames(sb, indent, m)
			if s, ok := m.MainStream(); ok {
				fmt.Fprintf(sb, "%sStream: %s %s\n", indent, StreamPlatform(s.RawURL), f.accent.Sprint(s.RawURL))
			}
		}

		separator(sb, isLast)
	}
}

func (f *ConsoleFormatter) writeGames(sb *strings.Builder, indent string, m pandascore.Match) {
	names := make(map[int]string, len(m.Opponents))
	for _, o := range m.Opponents {
		names[o.Opponent.ID] = o.Opponent.DisplayName()
	}

	for _, g := range m.Games {
		var result string
		switch {
		case g.Winner != nil && g.Winner.ID != nil:
			result = names[*g.Winner.ID]
			if g.Forfeit {
				result += " (forfeit)"
			}
		case g.Status == pandascore.MatchStatusRunning:
			result = "in progress"
		default:
			result = "-"
		}
		length := ""
		if g.Length != nil {
			length = " " + f.muted.Sprint(FormatDuration(time.Duration(*g.Length)*time.Second))
		}
		fmt.Fprintf(sb, "%s  Game %d: %s%s\n", indent, g.Position, result, length)
	}
}

// FormatMatchesGrouped groups matches under their tournaments, highest tier first
func (f *ConsoleFormatter) FormatMatchesGrouped(matches []pandascore.Match, tournaments map[int]pandascore.Tournament) string {
	if len(matches) == 0 {
		return "No matches found"
	}

	groups := make(map[int][]pandascore.Match)
	var ids []int
	for _, m := range matches {
		if _, seen := groups[m.TournamentID]; !seen {
			ids = append(ids, m.TournamentID)
		}
		groups[m.TournamentID] = append(groups[m.TournamentID], m)
	}

	tier := func(id int) string {
		if t, ok := tournaments[id]; ok && t.Tier != nil {
			return tierRank(*t.Tier)
		}
		return "z"
	}
	slices.SortStableFunc(ids, func(a, b int) int {
		return cmp.Compare(tier(a), tier(b))
	})

	var sb strings.Builder
	for _, id := range ids {
		name := "Unknown Tournament"
		badge := ""
		if t, ok := tournaments[id]; ok {
			name = t.Name
			if t.Tier != nil {
				badge = " " + f.warn.Sprintf("[%s]", strings.ToUpper(*t.Tier))
			}
		}
		fmt.Fprintf(&sb, "\n%s%s (%d):\n\n", f.bold.Sprint(name), badge, len(groups[id]))
		f.writeMatches(&sb, groups[id], nil)
	}
	sb.WriteString("\n")
	return sb.String()
}

// tierRank orders PandaScore tiers s, a, b, c, d
func tierRank(tier string) string {
	t := strings.ToLower(tier)
	if t == "s" {
		return "0"
	}
	return t
}

// FormatMatchSummary counts matches by state
func (f *ConsoleFormatter) FormatMatchSummary(matches []pandascore.Match) string {
	var finished, live, upcoming int
	for _, m := range matches {
		switch {
		case m.HasEnded():
			finished++
		case m.IsLive():
			live++
		case m.IsPending():
			upcoming++
		}
	}
	return fmt.Sprintf("Summary: %d finished | %d live | %d upcoming", finished, live, upcoming)
}

// FormatPlayerList formats players for console display
func (f *ConsoleFormatter) FormatPlayerList(players []pandascore.Player) string {
	if len(players) == 0 {
		return "No players found"
	}

	var sb strings.Builder
	header(&sb, Plural(len(players), "Player"), len(players))

	for i, p := range players {
		isLast := i == len(players)-1

		nationality := ""
		if p.Nationality != nil {
			nationality = Flag(*p.Nationality) + " "
		}
		race := ""
		if p.Role != nil {
			race = f.muted.Sprintf(" [%s]", RaceIcon(*p.Role))
		}
		indent := treeItem(&sb, isLast, fmt.Sprintf("%s%s%s", nationality, f.bold.Sprint(p.Name), race))

		var parts []string
		if full, ok := p.FullName(); ok {
			parts = append(parts, full)
		}
		if p.Age != nil {
			parts = append(parts, fmt.Sprintf("Age %d", *p.Age))
		}
		if p.Nationality != nil {
			parts = append(parts, CountryName(*p.Nationality))
		}
		if len(parts) > 0 {
			fmt.Fprintf(&sb, "%s%s\n", indent, strings.Join(parts, " | "))
		}
		if p.CurrentTeam != nil {
			fmt.Fprintf(&sb, "%sTeam: %s\n", indent, p.CurrentTeam.Name)
		}
		if f.details && p.Hometown != nil {
			fmt.Fprintf(&sb, "%sHometown: %s\n", indent, *p.Hometown)
		}

		separator(&sb, isLast)
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatTeamList formats teams for console display
func (f *ConsoleFormatter) FormatTeamList(teams []pandascore.Team) string {
	if len(teams) == 0 {
		return "No teams found"
	}

	var sb strings.Builder
	header(&sb, Plural(len(teams), "Team"), len(teams))

	for i, t := range teams {
		isLast := i == len(teams)-1

		line := f.bold.Sprint(t.Name)
		if t.Acronym != nil && *t.Acronym != t.Name {
			line += f.muted.Sprintf(" (%s)", *t.Acronym)
		}
		indent := treeItem(&sb, isLast, line)

		if t.Location != nil {
			fmt.Fprintf(&sb, "%sLocation: %s %s\n", indent, Flag(*t.Location), CountryName(*t.Location))
		}
		if t.HasRoster() {
			names := make([]string, 0, len(t.Players))
			for _, p := range t.Players {
				names = append(names, p.Name)
			}
			if f.details {
				fmt.Fprintf(&sb, "%sRoster: %s\n", indent, strings.Join(names, ", "))
			} else {
				fmt.Fprintf(&sb, "%sRoster: %d %s\n", indent, t.RosterSize(), Plural(t.RosterSize(), "player"))
			}
		}

		separator(&sb, isLast)
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatTournamentList formats tournaments for console display
func (f *ConsoleFormatter) FormatTournamentList(tournaments []pandascore.Tournament) string {
	if len(tournaments) == 0 {
		return "No tournaments found"
	}

	var sb strings.Builder
	header(&sb, Plural(len(tournaments), "Tournament"), len(tournaments))
	now := f.now()

	for i, t := range tournaments {
		isLast := i == len(tournaments)-1

		line := f.bold.Sprint(t.Name)
		if t.Tier != nil {
			line += " " + f.warn.Sprintf("[%s]", strings.ToUpper(*t.Tier))
		}
		switch {
		case t.IsRunning(now):
			line += "  " + f.live.Sprint("● Running")
		case t.IsPending(now):
			line += "  " + f.upcoming.Sprint("◯ Upcoming")
		case t.HasEnded(now):
			line += "  " + f.finished.Sprint("✓ Ended")
		}
		indent := treeItem(&sb, isLast, line)

		fmt.Fprintf(&sb, "%sDates: %s → %s\n", indent, f.stamp(t.BeginAt), f.stamp(t.EndAt))

		var parts []string
		if t.Prizepool != nil {
			parts = append(parts, fmt.Sprintf("Prize pool: %s", *t.Prizepool))
		}
		if n := t.TeamCount(); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, Plural(n, "participant")))
		}
		if t.LiveSupported {
			parts = append(parts, "Live data")
		}
		if len(parts) > 0 {
			fmt.Fprintf(&sb, "%s%s\n", indent, strings.Join(parts, " | "))
		}
		if f.details {
			fmt.Fprintf(&sb, "%sID: %d | Series: %d | League: %d\n", indent, t.ID, t.SerieID, t.LeagueID)
		}

		separator(&sb, isLast)
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatSeriesList formats series for console display
func (f *ConsoleFormatter) FormatSeriesList(series []pandascore.Series) string {
	if len(series) == 0 {
		return "No series found"
	}

	var sb strings.Builder
	header(&sb, "Series", len(series))
	now := f.now()

	for i, s := range series {
		isLast := i == len(series)-1

		name := s.FullName
		if name == "" {
			name = s.Name
		}
		line := f.bold.Sprint(name)
		if s.IsRunning(now) {
			line += "  " + f.live.Sprint("● Running")
		}
		indent := treeItem(&sb, isLast, line)

		fmt.Fprintf(&sb, "%sDates: %s → %s\n", indent, f.stamp(s.BeginAt), f.stamp(s.EndAt))
		if n := s.TournamentCount(); n > 0 {
			fmt.Fprintf(&sb, "%s%d %s\n", indent, n, Plural(n, "tournament"))
		}
		if f.details && s.Description != nil {
			fmt.Fprintf(&sb, "%s%s\n", indent, *s.Description)
		}

		separator(&sb, isLast)
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatLeagueList formats leagues for console display
func (f *ConsoleFormatter) FormatLeagueList(leagues []pandascore.League) string {
	if len(leagues) == 0 {
		return "No leagues found"
	}

	var sb strings.Builder
	header(&sb, Plural(len(leagues), "League"), len(leagues))

	for i, l := range leagues {
		isLast := i == len(leagues)-1
		prefix := branch
		if isLast {
			prefix = lastBranch
		}
		fmt.Fprintf(&sb, "%s%s %s\n", prefix, f.bold.Sprint(l.Name), f.muted.Sprintf("#%d", l.ID))
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatStreams lists the stream links of matches. An empty language lists all.
func (f *ConsoleFormatter) FormatStreams(matches []pandascore.Match, language string) string {
	var sb strings.Builder
	var shown int

	for _, m := range matches {
		var streams []pandascore.Stream
		for _, s := range m.Streams {
			if language == "" || strings.EqualFold(s.Language, language) {
				streams = append(streams, s)
			}
		}
		if len(streams) == 0 {
			continue
		}
		shown++

		fmt.Fprintf(&sb, "\n%s  %s\n", f.Status(m.Status), f.MatchLine(m))
		for i, s := range streams {
			prefix := branch
			if i == len(streams)-1 {
				prefix = lastBranch
			}
			flags := ""
			if s.Main {
				flags += " main"
			}
			if s.Official {
				flags += " official"
			}
			fmt.Fprintf(&sb, "%s%s [%s]%s %s\n", prefix, StreamPlatform(s.RawURL), strings.ToUpper(s.Language), f.muted.Sprint(flags), f.accent.Sprint(s.RawURL))
		}
	}

	if shown == 0 {
		return "No streams found"
	}
	return sb.String()
}

// FormatCacheStats formats response cache statistics
func (f *ConsoleFormatter) FormatCacheStats(stats cache.Stats, enabled bool) string {
	if !enabled {
		return "Cache: disabled"
	}

	var sb strings.Builder
	sb.WriteString("\nCache statistics:\n")
	fmt.Fprintf(&sb, "%sEntries: %d\n", branch, stats.Size)
	fmt.Fprintf(&sb, "%sHits: %d\n", branch, stats.Hits)
	fmt.Fprintf(&sb, "%sMisses: %d\n", branch, stats.Misses)
	fmt.Fprintf(&sb, "%sEvictions: %d\n", branch, stats.Evictions)
	fmt.Fprintf(&sb, "%sHit rate: %.1f%%\n", lastBranch, stats.HitRate*100)
	return sb.String()
}

// FormatRateLimit formats the last observed rate-limit headers
func (f *ConsoleFormatter) FormatRateLimit(status pandascore.RateLimitStatus) string {
	if status.Remaining == nil && status.ResetAt == nil {
		return "Rate limit: unknown"
	}

	var parts []string
	if status.Remaining != nil {
		remaining := fmt.Sprintf("%d requests remaining", *status.Remaining)
		if *status.Remaining < 50 {
			remaining = f.warn.Sprint(remaining)
		}
		parts = append(parts, remaining)
	}
	if status.ResetAt != nil {
		parts = append(parts, fmt.Sprintf("resets %s", RelativeTime(*status.ResetAt, f.now(), f.loc)))
	}
	return "Rate limit: " + strings.Join(parts, ", ")
}

// FormatPagination formats listing position from pagination headers
func (f *ConsoleFormatter) FormatPagination(info pandascore.PaginationInfo) string {
	line := fmt.Sprintf("Page %d of %d (%d total)", info.Page, info.TotalPages(), info.Total)
	if info.HasNext() {
		line += f.muted.Sprint(" | use --page to see more")
	}
	return line
}
