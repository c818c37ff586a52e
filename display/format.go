package display

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
)

// Tree drawing characters
const (
	branch     = "├── "
	lastBranch = "╰── "
	pipe       = "│"
	indentMid  = "│   "
	indentLast = "    "
)

// ColorEnabled reports whether f should receive ANSI colors
func ColorEnabled(noColor bool, f *os.File) bool {
	if noColor || os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// FormatDuration renders d as "1h 05m", "3m 07s" or "42s"
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = -total
	}
	hours := total / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// RelativeTime renders t relative to now ("in 3h", "2d ago"). Anything a
// week or more away is printed as a date.
func RelativeTime(t, now time.Time, loc *time.Location) string {
	diff := t.Sub(now)
	future := diff > 0
	if !future {
		diff = -diff
	}

	var amount string
	switch {
	case diff < time.Minute:
		amount = fmt.Sprintf("%ds", int(diff.Seconds()))
	case diff < time.Hour:
		amount = fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		amount = fmt.Sprintf("%dh", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		amount = fmt.Sprintf("%dd", int(diff.Hours()/24))
	default:
		return t.In(loc).Format(DateTimeLayout)
	}

	if future {
		return "in " + amount
	}
	return amount + " ago"
}

// DateTimeLayout is used for every absolute timestamp in console and CSV output
const DateTimeLayout = "2006-01-02 15:04"

// Truncate shortens s to n runes, marking the cut with "..."
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

// RaceIcon returns the single-letter race marker for a player role
func RaceIcon(role string) string {
	switch strings.ToLower(role) {
	case "terran":
		return "T"
	case "protoss":
		return "P"
	case "zerg":
		return "Z"
	case "random":
		return "R"
	default:
		return "?"
	}
}

// StreamPlatform names the platform hosting a stream URL
func StreamPlatform(url string) string {
	switch {
	case url == "":
		return "No stream"
	case strings.Contains(url, "twitch.tv"):
		return "Twitch"
	case strings.Contains(url, "youtube.com"), strings.Contains(url, "youtu.be"):
		return "YouTube"
	case strings.Contains(url, "afreecatv.com"), strings.Contains(url, "sooplive"):
		return "SOOP"
	default:
		return "Stream"
	}
}

// Plural returns word with an "s" appended unless n is 1
func Plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// countryNames maps ISO codes used by PandaScore to display names
var countryNames = map[string]string{
	"KR": "Korea",
	"US": "United States",
	"DE": "Germany",
	"FR": "France",
	"CA": "Canada",
	"PL": "Poland",
	"FI": "Finland",
	"SE": "Sweden",
	"NO": "Norway",
	"DK": "Denmark",
	"NL": "Netherlands",
	"GB": "United Kingdom",
	"IT": "Italy",
	"ES": "Spain",
	"MX": "Mexico",
	"BR": "Brazil",
	"AU": "Australia",
	"CN": "China",
	"TW": "Taiwan",
	"JP": "Japan",
	"RU": "Russia",
	"UA": "Ukraine",
	"AT": "Austria",
	"CH": "Switzerland",
	"BE": "Belgium",
	"CZ": "Czech Republic",
	"RO": "Romania",
	"IL": "Israel",
	"AR": "Argentina",
	"CL": "Chile",
	"PE": "Peru",
	"PT": "Portugal",
	"TR": "Turkey",
	"NZ": "New Zealand",
	"PH": "Philippines",
	"VN": "Vietnam",
	"TH": "Thailand",
}

// CountryName returns the display name for a country code, or the code itself
func CountryName(code string) string {
	if name, ok := countryNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// Flag returns the regional indicator emoji for a two-letter country code
func Flag(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "\U0001F30D"
	}
	const offset = 0x1F1E6 - 'A'
	return string([]rune{rune(code[0]) + offset, rune(code[1]) + offset})
}
