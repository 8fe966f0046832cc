// Package output renders sync core results for the eater CLI.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/app"
	"github.com/colthorp/eater-cli-go/internal/fetch"
	"github.com/colthorp/eater-cli-go/internal/ledger"
	"github.com/colthorp/eater-cli-go/internal/stats"
)

// DayReport is the printable form of a products view.
type DayReport struct {
	Day          string                 `json:"day"`
	Today        bool                   `json:"today"`
	Freshness    string                 `json:"freshness"`
	Loading      bool                   `json:"loading,omitempty"`
	NoData       bool                   `json:"no_data,omitempty"`
	Products     []app.DecoratedProduct `json:"products"`
	CaloriesLeft int                    `json:"calories_left"`
	PersonWeight float64                `json:"person_weight,omitempty"`
	Macros       *api.MacroSummary      `json:"macros,omitempty"`
	SoftLimit    int                    `json:"soft_limit,omitempty"`
	HardLimit    int                    `json:"hard_limit,omitempty"`
	SportBonus   int                    `json:"sport_bonus,omitempty"`
}

// NewDayReport builds a report from a view and its decorated products.
func NewDayReport(v fetch.View, products []app.DecoratedProduct) DayReport {
	r := DayReport{
		Day:       v.DayKey,
		Today:     v.Today,
		Freshness: v.Freshness.String(),
		Loading:   v.Loading || v.Blocking,
		NoData:    v.NoData(),
		Products:  products,
		Macros:    v.Macros,
	}
	if v.Products != nil {
		r.CaloriesLeft = v.Products.CaloriesLeft
		r.PersonWeight = v.Products.PersonWeight
	}
	return r
}

// PrintJSON writes item as indented JSON.
func PrintJSON(w io.Writer, item any) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// WriteJSONLine writes item as one compact JSON line.
func WriteJSONLine(w io.Writer, item any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// PrintDay writes a day report as text.
func PrintDay(w io.Writer, r DayReport) {
	label := r.Day
	if r.Today {
		label += " (today)"
	}
	fmt.Fprintf(w, "%s  [%s]\n", label, r.Freshness)
	if r.NoData {
		fmt.Fprintln(w, "  no data")
		return
	}
	if r.Loading && len(r.Products) == 0 {
		fmt.Fprintln(w, "  loading...")
		return
	}

	total := 0
	for _, p := range r.Products {
		line := fmt.Sprintf("  %s  %-28s %5d kcal %5d g", time.UnixMilli(p.Time).UTC().Format("15:04"), p.Name, p.TotalCalories(), p.Weight)
		if extras := formatExtras(p); extras != "" {
			line += "  +" + extras
		}
		fmt.Fprintln(w, line)
		total += p.TotalCalories()
	}
	fmt.Fprintf(w, "  total %d kcal, %d left\n", total, r.CaloriesLeft)
	if r.SoftLimit > 0 {
		fmt.Fprintf(w, "  limits %d / %d kcal", r.SoftLimit, r.HardLimit)
		if r.SportBonus > 0 {
			fmt.Fprintf(w, " (incl. %d sport)", r.SportBonus)
		}
		fmt.Fprintln(w)
	}
	if r.PersonWeight > 0 {
		fmt.Fprintf(w, "  weight %.1f kg\n", r.PersonWeight)
	}
	if m := r.Macros; m != nil && m.HasData {
		fmt.Fprintf(w, "  macros P %.0f g  F %.0f g  C %.0f g  sugar %.0f g\n", m.Proteins, m.Fats, m.Carbohydrates, m.Sugar)
	}
}

func formatExtras(p app.DecoratedProduct) string {
	parts := make([]string, 0, len(p.Extras)+1)
	keys := make([]string, 0, len(p.Extras))
	for k := range p.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s x%d", k, p.Extras[k]))
	}
	if p.AddedSugarTsp > 0 {
		parts = append(parts, fmt.Sprintf("sugar %d tsp", p.AddedSugarTsp))
	}
	return strings.Join(parts, ", ")
}

// PrintSeries writes a statistics series with averages.
func PrintSeries(w io.Writer, s stats.Series) {
	fmt.Fprintf(w, "%s (%d days)\n", s.Period, len(s.Days))
	for _, d := range s.Days {
		switch {
		case !d.Cached:
			fmt.Fprintf(w, "  %s  unavailable\n", d.DayKey)
		case !d.Summary.HasData:
			fmt.Fprintf(w, "  %s  -\n", d.DayKey)
		default:
			fmt.Fprintf(w, "  %s  %5d kcal  %d meals\n", d.DayKey, d.Summary.TotalCalories, d.Summary.NumberOfMeals)
		}
	}
	a := s.Averages()
	if a.DaysWithData == 0 {
		return
	}
	fmt.Fprintf(w, "  avg %.0f kcal  P %.0f  F %.0f  C %.0f  over %d days\n", a.Calories, a.Proteins, a.Fats, a.Carbs, a.DaysWithData)
	if a.Weight > 0 {
		fmt.Fprintf(w, "  avg weight %.1f kg\n", a.Weight)
	}
}

// PrintAlcohol writes drink events.
func PrintAlcohol(w io.Writer, events []api.AlcoholEvent, stale bool) {
	if stale {
		fmt.Fprintln(w, "(offline, showing last result)")
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "no drinks")
		return
	}
	for _, e := range events {
		fmt.Fprintf(w, "  %s  %-20s %4d ml %4d kcal\n", time.UnixMilli(e.Time).UTC().Format("2006-01-02 15:04"), e.Drink, e.Quantity, e.Calories)
	}
}

// PrintChess writes the chess ledger.
func PrintChess(w io.Writer, s ledger.ChessState, today string) {
	tier := ledger.LeagueTier(s.TotalWins)
	fmt.Fprintf(w, "%d wins, league %s", s.TotalWins, tier)
	if next := ledger.WinsToNextTier(s.TotalWins); next > 0 {
		fmt.Fprintf(w, " (%d to next)", next)
	}
	fmt.Fprintln(w)
	if s.OpponentID != "" {
		fmt.Fprintf(w, "opponent %s <%s>\n", s.OpponentName, s.OpponentID)
	}
	ids := make([]string, 0, len(s.PerOpponent))
	for id := range s.PerOpponent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sc := s.PerOpponent[id]
		fmt.Fprintf(w, "  %-30s %s\n", id, api.FormatScore(sc.Wins, sc.Losses))
	}
	if s.DayKey == today && s.Snapshot != nil {
		fmt.Fprintln(w, "played today")
	}
}

// PrintFriends writes one friend per line.
func PrintFriends(w io.Writer, friends []api.Friend) {
	for _, f := range friends {
		if f.Nickname != "" {
			fmt.Fprintf(w, "%s (%s)\n", f.Nickname, f.Email)
			continue
		}
		fmt.Fprintln(w, f.Email)
	}
}
