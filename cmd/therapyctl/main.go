package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"therapyctl/internal/api"
	"therapyctl/internal/config"
	"therapyctl/internal/logging"
	"therapyctl/internal/session"
	"therapyctl/internal/tui"
)

const version = "1.0.0"

type appState struct {
	cfg     config.Config
	cfgPath string
	client  *api.Client
	log     *zap.Logger
}

func newAppState() (*appState, error) {
	cfgPath := config.DefaultPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = logging.DefaultPath()
	}
	log, err := logging.New(logPath)
	if err != nil {
		log = zap.NewNop()
	}

	client := api.NewClient(cfg.BaseURL, log)
	client.SetTokens(cfg.AccessToken, cfg.RefreshToken)

	st := &appState{cfg: cfg, cfgPath: cfgPath, client: client, log: log}
	client.TokenHook = func(access, refresh string) {
		st.cfg.AccessToken = access
		st.cfg.RefreshToken = refresh
		_ = config.Save(st.cfg, st.cfgPath)
	}
	return st, nil
}

func (st *appState) narrator() session.Narrator {
	if !st.cfg.Narration {
		return session.NoopNarrator{}
	}
	return session.DetectNarrator()
}

func (st *appState) childID(flagValue string) api.ID {
	if flagValue != "" {
		return api.ID(flagValue)
	}
	// Re-read the persisted selection at session-start time; another
	// invocation may have changed it.
	if cfg, err := config.Load(st.cfgPath); err == nil {
		return api.ID(cfg.SelectedChild)
	}
	return api.ID(st.cfg.SelectedChild)
}

func main() {
	root := &cobra.Command{
		Use:          "therapyctl",
		Short:        "therapyctl - terminal client for the therapy game platform",
		Long:         "therapyctl runs therapy game sessions (matching, memory match, scene description, joint attention, speech) against the platform API and shows therapist dashboards.",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		loginCmd(),
		childrenCmd(),
		playCmd(),
		activitiesCmd(),
		dashboardCmd(),
		historyCmd(),
		summaryCmd(),
		endCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the platform and store tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newAppState()
			if err != nil {
				return err
			}
			reader := bufio.NewReader(os.Stdin)
			fmt.Print("Username: ")
			username, _ := reader.ReadString('\n')
			fmt.Print("Password: ")
			password, _ := reader.ReadString('\n')

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := st.client.Login(ctx, strings.TrimSpace(username), strings.TrimSpace(password)); err != nil {
				return err
			}
			me, err := st.client.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", me.Username)
			return nil
		},
	}
}

func childrenCmd() *cobra.Command {
	var selectID string
	cmd := &cobra.Command{
		Use:   "children",
		Short: "List the child roster, optionally selecting one",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newAppState()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if selectID != "" {
				st.cfg.SelectedChild = selectID
				if err := config.Save(st.cfg, st.cfgPath); err != nil {
					return err
				}
			}
			children, err := st.client.ListChildren(ctx)
			if err != nil {
				return err
			}
			for _, c := range children {
				marker := " "
				if c.ID.String() == st.cfg.SelectedChild {
					marker = "*"
				}
				name := strings.TrimSpace(c.FirstName + " " + c.LastName)
				if c.Nickname != "" {
					name += " (" + c.Nickname + ")"
				}
				fmt.Printf("%s %-6s %s\n", marker, c.ID, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&selectID, "select", "", "set the selected child id")
	return cmd
}

func playCmd() *cobra.Command {
	var child string
	var trials int
	var timeLimitMS int
	var activity string
	cmd := &cobra.Command{
		Use:   "play <game>",
		Short: "Run a game session (matching, memory_match, object_discovery, problem_solving, ja, scene_description, speech)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newAppState()
			if err != nil {
				return err
			}
			defer func() { _ = st.log.Sync() }()

			game := args[0]
			childID := st.childID(child)
			if childID == "" {
				return session.ErrNoChildSelected
			}
			if trials <= 0 {
				trials = st.cfg.DefaultTrials
			}
			if timeLimitMS <= 0 {
				timeLimitMS = st.cfg.TimeLimitMS
			}
			theme := tui.NewTheme(st.cfg.Theme)

			var model tea.Model
			if session.ModeForGame(game) == session.AudioCapture {
				flow := session.NewSpeechFlow(st.client, session.DetectRecorder(), st.narrator(), st.log)
				model = tui.NewSpeechModel(flow, childID, api.ID(activity), trials, theme)
			} else {
				ctrl := session.NewController(st.client, game, st.narrator(), st.log)
				model = tui.NewPlayModel(ctrl, childID, trials, timeLimitMS, theme)
			}

			p := tea.NewProgram(model, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&child, "child", "", "child id (defaults to the selected child)")
	cmd.Flags().IntVar(&trials, "trials", 0, "planned trial count")
	cmd.Flags().IntVar(&timeLimitMS, "time-limit", 0, "per-trial time limit in milliseconds")
	cmd.Flags().StringVar(&activity, "activity", "", "speech activity id (see 'therapyctl activities')")
	return cmd
}

func activitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activities",
		Short: "List the speech exercise catalog (ids for play speech --activity)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newAppState()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			activities, err := st.client.ListSpeechActivities(ctx)
			if err != nil {
				return err
			}
			for _, a := range activities {
				fmt.Printf("%-6s %-28s L%d  %s\n", a.ID, a.Name, a.Difficulty, a.Description)
			}
			return nil
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show therapist stats and recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newAppState()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			d, err := st.client.FetchDashboard(ctx, api.ID(st.cfg.SelectedChild))
			if err != nil {
				return err
			}
			fmt.Printf("Sessions: %d total, %d this week · %d active children · avg accuracy %.1f%%\n",
				d.Stats.TotalSessions, d.Stats.SessionsThisWeek, d.Stats.ActiveChildren, d.Stats.AvgAccuracy*100)
			for _, h := range d.History {
				fmt.Printf("  %-6s %-10s %-28s %d/%d\n", h.SessionID, h.Date, h.Title, h.Correct, h.Total)
			}
			if d.Progress != nil && len(d.Progress.Trend) > 0 {
				fmt.Printf("Selected child trend: %v\n", d.Progress.Trend)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newAppState()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			entries, err := st.client.SessionHistory(ctx)
			if err != nil {
				return err
			}
			for _, h := range entries {
				fmt.Printf("%-6s %-10s %-12s %-28s %d/%d\n", h.SessionID, h.Date, h.Status, h.Title, h.Correct, h.Total)
			}
			return nil
		},
	}
}

func summaryCmd() *cobra.Command {
	var game string
	cmd := &cobra.Command{
		Use:   "summary <session-id>",
		Short: "Fetch the summary for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newAppState()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			sum, err := st.client.SessionSummary(ctx, game, api.ID(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("Session %s (%s): %d/%d trials, %d correct, accuracy %.1f%%, level %d\n",
				sum.SessionID, sum.Status, sum.Completed, sum.TotalTrials, sum.Correct, sum.Accuracy*100, sum.CurrentLevel)
			if sum.Suggestion != "" {
				fmt.Println(sum.Suggestion)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&game, "game", "matching", "game code the session belongs to")
	return cmd
}

func endCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <session-id>",
		Short: "Abandon an in-progress session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newAppState()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := st.client.EndSession(ctx, api.ID(args[0])); err != nil {
				return err
			}
			fmt.Println("Session ended.")
			return nil
		},
	}
}
