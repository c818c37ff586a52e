package filter

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/sc2kit/pandascore"
)

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
	helpers    Env
}

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newLRUCache[CompiledFilter](size)
		}
	}
}

// WithCustomFunctions adds custom helper functions
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.helperFuncs, funcs)
	}
}

// WithClock replaces time.Now in the date helpers
func WithClock(now func() time.Time) ExprCompilerOption {
	return func(c *exprCompiler) {
		c.now = now
	}
}

// NewExprCompiler creates a new expr-based filter compiler
func NewExprCompiler(opts ...ExprCompilerOption) CachingCompiler {
	c := &exprCompiler{
		helperFuncs: make(Env, 32),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	custom := c.helperFuncs
	c.helperFuncs = createHelperFunctions(c.now)
	maps.Copy(c.helperFuncs, custom)

	return c
}

// exprCompiler implements Compiler for expr-based filters
type exprCompiler struct {
	helperFuncs Env
	cache       *lruCache[CompiledFilter]
	now         func() time.Time
}

// Compile compiles an expression into an executable filter
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
			Position:   -1,
		}
	}

	// Check cache if enabled
	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	// Entity fields are only known at runtime
	compileEnv := make(Env, len(c.helperFuncs)+len(entityFuncStubs))
	maps.Copy(compileEnv, entityFuncStubs)
	maps.Copy(compileEnv, c.helperFuncs)

	program, err := expr.Compile(expression,
		expr.Env(map[string]any(compileEnv)),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Position:   -1,
			Err:        err,
		}
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
		helpers:    c.helperFuncs,
	}

	// Cache if enabled
	if c.cache != nil {
		c.cache.Put(expression, filter)
	}

	return filter, nil
}

// Clear removes all cached filters
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Size returns the number of cached filters
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.Size()
	}
	return 0
}

// Evaluate reports whether env matches; evaluation errors are a non-match
func (f *exprFilter) Evaluate(env Env) bool {
	ok, err := f.Check(env)
	return err == nil && ok
}

// Check evaluates the program against env merged over the helper functions
func (f *exprFilter) Check(env Env) (bool, error) {
	runtime := make(Env, len(f.helpers)+len(env))
	maps.Copy(runtime, f.helpers)
	maps.Copy(runtime, env)

	result, err := expr.Run(f.program, map[string]any(runtime))
	if err != nil {
		return false, &EvaluationError{
			Expression: f.expression,
			Subject:    subjectName(env),
			Reason:     "failed to evaluate expression",
			Err:        err,
		}
	}

	// AsBool cannot check expressions built only from runtime variables
	matched, ok := result.(bool)
	if !ok {
		return false, &EvaluationError{
			Expression: f.expression,
			Subject:    subjectName(env),
			Reason:     fmt.Sprintf("expected bool result, got %T", result),
		}
	}
	return matched, nil
}

// Expression returns the original expression
func (f *exprFilter) Expression() string {
	return f.expression
}

// entityFuncStubs declares the per-item functions so they type-check at
// compile time; the real closures come from the item's Env.
var entityFuncStubs = Env{
	"involves":  func(string) bool { return false },
	"hasStream": func(string) bool { return false },
	"plays":     func(string) bool { return false },
}

// createHelperFunctions creates the helper functions shared by every Env
func createHelperFunctions(now func() time.Time) Env {
	env := make(Env, 32)

	// Date helpers
	env["daysSince"] = func(t time.Time) int {
		return int(now().Sub(t).Hours() / 24)
	}
	env["daysAgo"] = func(days int) time.Time {
		return now().AddDate(0, 0, -days)
	}
	env["hoursUntil"] = func(t time.Time) float64 {
		return t.Sub(now()).Hours()
	}
	env["parseDate"] = func(dateStr string) time.Time {
		t, _ := pandascore.ParseTime(dateStr)
		return t
	}
	// String helpers
	env["contains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["startsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["endsWith"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	env["lower"] = strings.ToLower
	env["upper"] = strings.ToUpper
	// Current time
	env["now"] = now

	return env
}

// subjectKey is the Env entry naming the item, used in evaluation errors
const subjectKey = "Name"

func subjectName(env Env) string {
	if name, ok := env[subjectKey].(string); ok {
		return name
	}
	return "<unnamed>"
}

// MatchEnv exposes a match to filter expressions
func MatchEnv(m pandascore.Match) Env {
	env := Env{
		"ID":           m.ID,
		"Name":         m.Name,
		"Status":       string(m.Status),
		"Live":         m.IsLive(),
		"Finished":     m.HasEnded(),
		"Pending":      m.IsPending(),
		"TournamentID": m.TournamentID,
		"SerieID":      m.SerieID,
		"Games":        m.NumberOfGames,
		"Opponents":    m.OpponentNames(),
		"HasStreams":   m.HasStreams(),
		"BeginAt":      timeOrZero(m.BeginAt),
		"EndAt":        timeOrZero(m.EndAt),
		"Winner":       m.WinnerName(),
		"involves":     m.Involves,
	}

	languages := make([]string, 0, len(m.Streams))
	for _, s := range m.Streams {
		languages = append(languages, strings.ToLower(s.Language))
	}
	env["hasStream"] = func(language string) bool {
		language = strings.ToLower(language)
		for _, l := range languages {
			if l == language {
				return true
			}
		}
		return false
	}

	return env
}

// PlayerEnv exposes a player to filter expressions
func PlayerEnv(p pandascore.Player) Env {
	env := Env{
		"ID":          p.ID,
		"Name":        p.Name,
		"Nationality": deref(p.Nationality),
		"Role":        deref(p.Role),
		"Age":         0,
		"Team":        "",
		"HasTeam":     p.HasTeam(),
		"Birthday":    timeOrZero(p.Birthday),
	}
	if full, ok := p.FullName(); ok {
		env["FullName"] = full
	}
	if p.Age != nil {
		env["Age"] = *p.Age
	}
	if p.CurrentTeam != nil {
		env["Team"] = p.CurrentTeam.Name
	}
	return env
}

// TeamEnv exposes a team to filter expressions
func TeamEnv(t pandascore.Team) Env {
	players := make([]string, 0, len(t.Players))
	for _, p := range t.Players {
		players = append(players, p.Name)
	}
	return Env{
		"ID":         t.ID,
		"Name":       t.Name,
		"Acronym":    deref(t.Acronym),
		"Location":   deref(t.Location),
		"RosterSize": t.RosterSize(),
		"Players":    players,
		"plays": func(name string) bool {
			for _, p := range players {
				if strings.EqualFold(p, name) {
					return true
				}
			}
			return false
		},
	}
}

// TournamentEnv exposes a tournament to filter expressions. now decides
// the Running/Ended/Pending flags.
func TournamentEnv(now time.Time) EnvFunc[pandascore.Tournament] {
	return func(t pandascore.Tournament) Env {
		prizepool, _ := t.PrizepoolAmount()
		return Env{
			"ID":            t.ID,
			"Name":          t.Name,
			"Tier":          deref(t.Tier),
			"Prizepool":     prizepool,
			"LiveSupported": t.LiveSupported,
			"Teams":         t.TeamCount(),
			"Running":       t.IsRunning(now),
			"Ended":         t.HasEnded(now),
			"Pending":       t.IsPending(now),
			"BeginAt":       timeOrZero(t.BeginAt),
			"EndAt":         timeOrZero(t.EndAt),
		}
	}
}

// SeriesEnv exposes a series to filter expressions
func SeriesEnv(now time.Time) EnvFunc[pandascore.Series] {
	return func(s pandascore.Series) Env {
		env := Env{
			"ID":          s.ID,
			"Name":        s.FullName,
			"LeagueID":    s.LeagueID,
			"Tier":        deref(s.Tier),
			"Season":      deref(s.Season),
			"Year":        0,
			"Tournaments": s.TournamentCount(),
			"Running":     s.IsRunning(now),
			"Ended":       s.HasEnded(now),
			"Pending":     s.IsPending(now),
			"BeginAt":     timeOrZero(s.BeginAt),
			"EndAt":       timeOrZero(s.EndAt),
		}
		if s.Year != nil {
			env["Year"] = *s.Year
		}
		return env
	}
}

func timeOrZero(t *pandascore.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Describe returns a short help text listing the variables of each Env
func Describe() string {
	var b strings.Builder
	fmt.Fprintln(&b, "Matches:     ID Name Status Live Finished Pending TournamentID SerieID Games Opponents HasStreams BeginAt EndAt Winner involves(name) hasStream(lang)")
	fmt.Fprintln(&b, "Players:     ID Name FullName Nationality Role Age Team HasTeam Birthday")
	fmt.Fprintln(&b, "Teams:       ID Name Acronym Location RosterSize Players plays(name)")
	fmt.Fprintln(&b, "Tournaments: ID Name Tier Prizepool LiveSupported Teams Running Ended Pending BeginAt EndAt")
	fmt.Fprintln(&b, "Series:      ID Name LeagueID Tier Season Year Tournaments Running Ended Pending BeginAt EndAt")
	fmt.Fprint(&b, "Helpers:     contains startsWith endsWith lower upper daysSince daysAgo hoursUntil now parseDate")
	return b.String()
}
