package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/app"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/fetch"
	"github.com/colthorp/eater-cli-go/internal/ledger"
	"github.com/colthorp/eater-cli-go/internal/limits"
	"github.com/colthorp/eater-cli-go/internal/logger"
	"github.com/colthorp/eater-cli-go/internal/metrics"
	"github.com/colthorp/eater-cli-go/internal/output"
	"github.com/colthorp/eater-cli-go/internal/stats"
)

func init() {
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(modifyCmd)
	rootCmd.AddCommand(weightCmd)
	rootCmd.AddCommand(extraCmd)
	rootCmd.AddCommand(photoCmd)
	rootCmd.AddCommand(sharedCmd)
	rootCmd.AddCommand(sportCmd)
	rootCmd.AddCommand(limitsCmd)
	rootCmd.AddCommand(chessCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(friendsCmd)
	rootCmd.AddCommand(endpointCmd)
	rootCmd.AddCommand(remindersCmd)
	rootCmd.AddCommand(clearCacheCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)

	chessCmd.AddCommand(chessRecordCmd, chessRollbackCmd, chessSyncCmd, chessSelectCmd)

	refreshCmd.Flags().Bool("silent", false, "Keep showing cached data while refreshing")

	extraCmd.Flags().Int("sugar", 0, "Add teaspoons of sugar instead of an extra")

	sportCmd.Flags().Bool("reset", false, "Reset today's sport calories")

	limitsCmd.Flags().Int("soft", 0, "Set a manual soft limit (requires --hard)")
	limitsCmd.Flags().Int("hard", 0, "Set a manual hard limit (requires --soft)")
	limitsCmd.Flags().Bool("auto", false, "Go back to limits computed from the health profile")
	limitsCmd.Flags().Float64("height", 0, "Height in cm")
	limitsCmd.Flags().Float64("weight", 0, "Weight in kg")
	limitsCmd.Flags().Int("age", 0, "Age in years")
	limitsCmd.Flags().String("gender", "", "male or female")
	limitsCmd.Flags().String("activity", string(limits.Sedentary), "sedentary, lightly_active, moderately_active, very_active or extremely_active")

	statsCmd.Flags().Bool("alcohol", false, "Show drinks for the period instead of macros")

	friendsCmd.Flags().Int("max", 0, "Maximum number of friends to list")

	watchCmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().Duration("sync-interval", 15*time.Minute, "Background sync interval")
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's food, using the cache when it is fresh",
	Args:  cobra.NoArgs,
	RunE:  handleToday,
}

var dayCmd = &cobra.Command{
	Use:   "day [date_spec]",
	Short: "Show a past day (YYYY-MM-DD, M/D, yesterday, d-3)",
	Args:  cobra.ExactArgs(1),
	RunE:  handleDay,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Drop the cached day and fetch it again",
	Args:  cobra.NoArgs,
	RunE:  handleRefresh,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [time]",
	Short: "Delete a food record by its time",
	Args:  cobra.ExactArgs(1),
	RunE:  handleDelete,
}

var modifyCmd = &cobra.Command{
	Use:   "modify [time] [percentage]",
	Short: "Rescale a food record to a percentage of its portion",
	Args:  cobra.ExactArgs(2),
	RunE:  handleModify,
}

var weightCmd = &cobra.Command{
	Use:   "weight [kg]",
	Short: "Record a manual weight",
	Args:  cobra.ExactArgs(1),
	RunE:  handleWeight,
}

var extraCmd = &cobra.Command{
	Use:   "extra [time] [extra]",
	Short: "Add a local extra (lemon_5g, honey_10g, ...) to a food record",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  handleExtra,
}

var photoCmd = &cobra.Command{
	Use:   "photo [temp_time] [image_file]",
	Short: "Register a submitted food photo",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  handlePhoto,
}

var sharedCmd = &cobra.Command{
	Use:   "shared",
	Short: "Refresh after a record was shared with a friend",
	Args:  cobra.NoArgs,
	RunE:  handleShared,
}

var sportCmd = &cobra.Command{
	Use:   "sport [gym|steps|treadmill|elliptical] [value]",
	Short: "Set or show today's sport calories",
	Args:  cobra.MaximumNArgs(2),
	RunE:  handleSport,
}

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show or change the daily calorie limits",
	Args:  cobra.NoArgs,
	RunE:  handleLimits,
}

var chessCmd = &cobra.Command{
	Use:   "chess",
	Short: "Show the chess ledger",
	Args:  cobra.NoArgs,
	RunE:  handleChess,
}

var chessRecordCmd = &cobra.Command{
	Use:   "record [win|draw|loss] [opponent]",
	Short: "Record a game against the selected or given opponent",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  handleChessRecord,
}

var chessRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Undo today's games",
	Args:  cobra.NoArgs,
	RunE:  handleChessRollback,
}

var chessSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the ledger from the backend",
	Args:  cobra.NoArgs,
	RunE:  handleChessSync,
}

var chessSelectCmd = &cobra.Command{
	Use:   "select [name] [email]",
	Short: "Select the opponent",
	Args:  cobra.ExactArgs(2),
	RunE:  handleChessSelect,
}

var statsCmd = &cobra.Command{
	Use:   "stats [week|month|two_months|three_months]",
	Short: "Show statistics for a period ending today",
	Args:  cobra.MaximumNArgs(1),
	RunE:  handleStats,
}

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "List friends",
	Args:  cobra.NoArgs,
	RunE:  handleFriends,
}

var endpointCmd = &cobra.Command{
	Use:   "endpoint [url]",
	Short: "Switch to another backend; cached data and the chess ledger are reset",
	Args:  cobra.ExactArgs(1),
	RunE:  handleEndpoint,
}

var remindersCmd = &cobra.Command{
	Use:   "reminders [on|off]",
	Short: "Show or toggle meal reminders",
	Args:  cobra.MaximumNArgs(1),
	RunE:  handleReminders,
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop cached products, statistics and photos",
	Args:  cobra.NoArgs,
	RunE:  handleClearCache,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep today's view in sync and watch for day changes",
	Args:  cobra.NoArgs,
	RunE:  handleWatch,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI integration",
	Args:  cobra.NoArgs,
	RunE:  handleMCP,
}

// renderView prints a view with its extras and limits applied.
func renderView(w io.Writer, a *app.App, v fetch.View) error {
	r := output.NewDayReport(v, a.Decorate(v))
	if v.Today {
		soft, hard, bonus, err := a.EffectiveLimits()
		if err != nil {
			return err
		}
		r.SoftLimit, r.HardLimit, r.SportBonus = soft, hard, bonus
	}
	if jsonOut {
		return output.WriteJSONLine(w, r)
	}
	output.PrintDay(w, r)
	return nil
}

// parseDateSpec adds "today" and "yesterday" to the forms core.ParseDateSpec accepts.
func parseDateSpec(spec string, now time.Time) (time.Time, error) {
	switch spec {
	case "today":
		return core.DateOnly(now), nil
	case "yesterday":
		return core.DateOnly(now).AddDate(0, 0, -1), nil
	default:
		return core.ParseDateSpec(spec, now)
	}
}

func parseTime(s string) (int64, error) {
	t, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid record time %q", s)
	}
	return t, nil
}

func handleToday(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.Days.Check(ctx); err != nil {
			logger.For(logger.ComponentDayBoundary).Warnw("day check failed", "error", err)
		}
		return renderView(cmd.OutOrStdout(), a, a.Fetch.LoadInitial(ctx))
	})
}

func handleDay(cmd *cobra.Command, args []string) error {
	date, err := parseDateSpec(args[0], time.Now())
	if err != nil {
		return err
	}
	return withApp(nil, func(a *app.App) error {
		a.Fetch.ViewDate(date)
		return renderView(cmd.OutOrStdout(), a, a.Fetch.LoadInitial(cmd.Context()))
	})
}

func handleRefresh(cmd *cobra.Command, args []string) error {
	silent, _ := cmd.Flags().GetBool("silent")
	return withApp(nil, func(a *app.App) error {
		var v fetch.View
		if silent {
			v = a.BackgroundSync(cmd.Context())
		} else {
			v = a.Fetch.ForceRefresh(cmd.Context())
		}
		return renderView(cmd.OutOrStdout(), a, v)
	})
}

func handleDelete(cmd *cobra.Command, args []string) error {
	t, err := parseTime(args[0])
	if err != nil {
		return err
	}
	return withApp(nil, func(a *app.App) error {
		v, err := a.DeleteFood(cmd.Context(), t)
		if err != nil {
			return err
		}
		return renderView(cmd.OutOrStdout(), a, v)
	})
}

func handleModify(cmd *cobra.Command, args []string) error {
	t, err := parseTime(args[0])
	if err != nil {
		return err
	}
	pct, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid percentage %q", args[1])
	}
	return withApp(nil, func(a *app.App) error {
		v, err := a.ModifyFood(cmd.Context(), t, pct)
		if err != nil {
			return err
		}
		return renderView(cmd.OutOrStdout(), a, v)
	})
}

func handleWeight(cmd *cobra.Command, args []string) error {
	kg, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid weight %q", args[0])
	}
	return withApp(nil, func(a *app.App) error {
		v, err := a.RecordWeight(cmd.Context(), kg)
		if err != nil {
			return err
		}
		return renderView(cmd.OutOrStdout(), a, v)
	})
}

func handleExtra(cmd *cobra.Command, args []string) error {
	sugar, _ := cmd.Flags().GetInt("sugar")
	if sugar == 0 && len(args) < 2 {
		return fmt.Errorf("an extra is required unless --sugar is set (one of %v)", app.ExtraKeys())
	}
	t, err := parseTime(args[0])
	if err != nil {
		return err
	}
	return withApp(nil, func(a *app.App) error {
		var v fetch.View
		if sugar != 0 {
			v, err = a.AddSugar(cmd.Context(), t, sugar)
		} else {
			v, err = a.AddExtra(cmd.Context(), t, args[1])
		}
		if err != nil {
			return err
		}
		return renderView(cmd.OutOrStdout(), a, v)
	})
}

func handlePhoto(cmd *cobra.Command, args []string) error {
	t, err := parseTime(args[0])
	if err != nil {
		return err
	}
	var image []byte
	if len(args) == 2 {
		if image, err = os.ReadFile(args[1]); err != nil {
			return fmt.Errorf("read photo: %w", err)
		}
	}
	return withApp(nil, func(a *app.App) error {
		return renderView(cmd.OutOrStdout(), a, a.PhotoSubmitted(cmd.Context(), t, image))
	})
}

func handleShared(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		return renderView(cmd.OutOrStdout(), a, a.Shared(cmd.Context()))
	})
}

func handleSport(cmd *cobra.Command, args []string) error {
	reset, _ := cmd.Flags().GetBool("reset")
	if len(args) == 1 {
		return fmt.Errorf("a value is required after the activity")
	}
	return withApp(nil, func(a *app.App) error {
		out := cmd.OutOrStdout()
		switch {
		case reset:
			if err := a.ResetSport(); err != nil {
				return err
			}
		case len(args) == 2:
			kind, err := ledger.ParseActivityKind(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q", args[1])
			}
			if _, err := a.AddActivity(kind, value); err != nil {
				return err
			}
		}
		soft, hard, bonus, err := a.EffectiveLimits()
		if err != nil {
			return err
		}
		if jsonOut {
			return output.PrintJSON(out, map[string]int{"sport_calories": bonus, "soft_limit": soft, "hard_limit": hard})
		}
		fmt.Fprintf(out, "sport %d kcal, limits %d / %d kcal\n", bonus, soft, hard)
		return nil
	})
}

func handleLimits(cmd *cobra.Command, args []string) error {
	soft, _ := cmd.Flags().GetInt("soft")
	hard, _ := cmd.Flags().GetInt("hard")
	auto, _ := cmd.Flags().GetBool("auto")
	height, _ := cmd.Flags().GetFloat64("height")
	weight, _ := cmd.Flags().GetFloat64("weight")
	age, _ := cmd.Flags().GetInt("age")
	gender, _ := cmd.Flags().GetString("gender")
	activity, _ := cmd.Flags().GetString("activity")

	if (soft != 0) != (hard != 0) {
		return fmt.Errorf("--soft and --hard must be used together")
	}

	return withApp(nil, func(a *app.App) error {
		switch {
		case soft != 0:
			if err := a.Limits.SetManual(soft, hard); err != nil {
				return err
			}
		case auto:
			if err := a.Limits.ClearManual(); err != nil {
				return err
			}
		case height != 0 || weight != 0 || age != 0 || gender != "":
			p := limits.Profile{HeightCm: height, WeightKg: weight, Age: age, Gender: limits.Gender(gender), Activity: limits.ActivityLevel(activity)}
			if err := a.Limits.SetProfile(p); err != nil {
				return err
			}
		}
		s, h := a.Limits.Limits()
		out := cmd.OutOrStdout()
		if jsonOut {
			return output.PrintJSON(out, map[string]any{"soft_limit": s, "hard_limit": h, "auto": a.Limits.AutoEnabled()})
		}
		mode := "manual"
		if a.Limits.AutoEnabled() {
			mode = "auto"
		}
		fmt.Fprintf(out, "soft %d kcal, hard %d kcal (%s)\n", s, h, mode)
		return nil
	})
}

func printChess(w io.Writer, a *app.App) error {
	s := a.Chess.State()
	if jsonOut {
		return output.PrintJSON(w, s)
	}
	output.PrintChess(w, s, a.Today())
	return nil
}

func handleChess(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		return printChess(cmd.OutOrStdout(), a)
	})
}

func handleChessRecord(cmd *cobra.Command, args []string) error {
	outcome, err := ledger.ParseOutcome(args[0])
	if err != nil {
		return err
	}
	opponent := ""
	if len(args) == 2 {
		opponent = args[1]
	}
	return withApp(nil, func(a *app.App) error {
		res, err := a.RecordChess(cmd.Context(), outcome, opponent)
		if err != nil {
			return err
		}
		if res.Promoted && !jsonOut {
			fmt.Fprintf(cmd.OutOrStdout(), "promoted to %s!\n", res.Tier)
		}
		return printChess(cmd.OutOrStdout(), a)
	})
}

func handleChessRollback(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		if err := a.RollbackChess(); err != nil {
			return err
		}
		return printChess(cmd.OutOrStdout(), a)
	})
}

func handleChessSync(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		if err := a.Chess.Sync(cmd.Context()); err != nil {
			return err
		}
		return printChess(cmd.OutOrStdout(), a)
	})
}

func handleChessSelect(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		if err := a.Chess.SelectOpponent(args[0], args[1]); err != nil {
			return err
		}
		return printChess(cmd.OutOrStdout(), a)
	})
}

func handleStats(cmd *cobra.Command, args []string) error {
	period := stats.Week
	if len(args) == 1 {
		p, err := stats.ParsePeriod(args[0])
		if err != nil {
			return err
		}
		period = p
	}
	alcohol, _ := cmd.Flags().GetBool("alcohol")

	return withApp(nil, func(a *app.App) error {
		out := cmd.OutOrStdout()
		if alcohol {
			end := core.DateOnly(time.Now())
			r := api.DateRange{Start: end.AddDate(0, 0, -(period.Days() - 1)), End: end}
			events, stale, err := a.Stats.Alcohol(cmd.Context(), r)
			if err != nil {
				return err
			}
			if jsonOut {
				return output.PrintJSON(out, events)
			}
			output.PrintAlcohol(out, events, stale)
			return nil
		}
		series, err := a.Stats.Load(cmd.Context(), period)
		if err != nil {
			return err
		}
		if jsonOut {
			return output.PrintJSON(out, map[string]any{"days": series.Days, "averages": series.Averages()})
		}
		output.PrintSeries(out, series)
		return nil
	})
}

func handleFriends(cmd *cobra.Command, args []string) error {
	maxResults, _ := cmd.Flags().GetInt("max")
	return withApp(nil, func(a *app.App) error {
		friends, err := a.Friends(cmd.Context(), maxResults)
		if err != nil {
			return err
		}
		if jsonOut {
			return output.PrintJSON(cmd.OutOrStdout(), friends)
		}
		output.PrintFriends(cmd.OutOrStdout(), friends)
		return nil
	})
}

func handleEndpoint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withApp(nil, func(a *app.App) error {
		if err := a.SaveEndpoint(args[0]); err != nil {
			return err
		}
		svc := api.NewHTTPService(args[0], cfg.APIToken, logger.For(logger.ComponentAPI))
		v, err := a.SwitchEndpoint(cmd.Context(), svc)
		if err != nil {
			return err
		}
		return renderView(cmd.OutOrStdout(), a, v)
	})
}

func handleReminders(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		if len(args) == 1 {
			switch args[0] {
			case "on":
				if err := a.Reminders.SetEnabled(true); err != nil {
					return err
				}
			case "off":
				if err := a.Reminders.SetEnabled(false); err != nil {
					return err
				}
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
		}
		out := cmd.OutOrStdout()
		pending := a.Reminders.Pending()
		if jsonOut {
			return output.PrintJSON(out, pending)
		}
		fmt.Fprintf(out, "reminders enabled: %t\n", a.Reminders.Enabled())
		for _, r := range pending {
			fmt.Fprintf(out, "  %s  %s\n", r.At.Format("2006-01-02 15:04"), r.Label)
		}
		return nil
	})
}

func handleClearCache(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		return a.ClearCaches()
	})
}

func handleWatch(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("metrics-addr")
	interval, _ := cmd.Flags().GetDuration("sync-interval")
	if interval <= 0 {
		return fmt.Errorf("--sync-interval must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	views := make(chan fetch.View, 16)
	presenter := fetch.PresenterFunc(func(v fetch.View) {
		select {
		case views <- v:
		default:
		}
	})

	return withApp(presenter, func(a *app.App) error {
		log := logger.For(logger.ComponentApp)
		g, ctx := errgroup.WithContext(ctx)

		if addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			g.Go(func() error {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			log.Infow("serving metrics", "addr", addr)
		}

		g.Go(func() error { return a.Days.Run(ctx) })

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case v := <-views:
					if err := renderView(out, a, v); err != nil {
						log.Warnw("failed to render view", "error", err)
					}
				}
			}
		})

		g.Go(func() error {
			a.Fetch.LoadInitial(ctx)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.BackgroundSync(ctx)
				}
			}
		})

		return g.Wait()
	})
}

func handleMCP(cmd *cobra.Command, args []string) error {
	return withApp(nil, func(a *app.App) error {
		return newMCPServer(a, os.Stdin, cmd.OutOrStdout()).serve(cmd.Context())
	})
}
