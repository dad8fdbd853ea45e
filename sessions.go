package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/gerunddev/pokeagent/internal/config"
	"github.com/gerunddev/pokeagent/internal/db"
	"github.com/gerunddev/pokeagent/internal/log"
)

// filePermissions is the default permission for exported files.
const filePermissions = 0644

// sessionsCmd creates the sessions subcommand group.
func sessionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
		Long: `Commands for inspecting recorded agent sessions.

Every tick of every session is stored in the trace database under data_dir.`,
	}

	cmd.AddCommand(sessionsListCmd(configPath))
	cmd.AddCommand(sessionsExportCmd(configPath))

	return cmd
}

// openDatabase loads config and opens the trace database.
func openDatabase(configPath string) (*db.DB, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	database, err := db.New(cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func sessionsListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(*configPath)
			if err != nil {
				return err
			}
			defer func() {
				log.CloseError("database", database.Close())
			}()
			return runSessionsList(database, cmd.OutOrStdout())
		},
	}
}

func runSessionsList(database *db.DB, out io.Writer) error {
	sessions, err := database.ListSessions()
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded")
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "MODE", "BACKEND", "MODEL", "STATUS", "TICKS", "FAILED", "STARTED")
	for _, s := range sessions {
		t.Row(
			s.ID,
			s.Mode,
			s.Backend,
			s.Model,
			string(s.Status),
			strconv.Itoa(s.Ticks),
			strconv.Itoa(s.FailedTicks),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}

	fmt.Fprintln(out, t.Render())
	return nil
}

func sessionsExportCmd(configPath *string) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session and its ticks as JSON",
		Long: `Export a session and every recorded tick as JSON to stdout or a file.

Examples:
  pokeagent sessions export 5f0c...              # Export to stdout
  pokeagent sessions export 5f0c... -o run.json  # Export to file`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(*configPath)
			if err != nil {
				return err
			}
			defer func() {
				log.CloseError("database", database.Close())
			}()
			return runSessionsExport(database, args[0], outputFile, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// sessionExport is the JSON document written by `sessions export`.
type sessionExport struct {
	ID          string       `json:"id"`
	Mode        string       `json:"mode"`
	Backend     string       `json:"backend"`
	Model       string       `json:"model,omitempty"`
	Source      string       `json:"source,omitempty"`
	Status      string       `json:"status"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Ticks       []tickExport `json:"ticks"`
}

type tickExport struct {
	Sequence    int      `json:"sequence"`
	FrameID     int64    `json:"frame_id"`
	Observation string   `json:"observation,omitempty"`
	Plan        string   `json:"plan,omitempty"`
	PlanCreated bool     `json:"plan_created,omitempty"`
	Buttons     []string `json:"buttons"`
	Raw         string   `json:"raw_response,omitempty"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Fallback    string   `json:"fallback,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	ErrorStage  string   `json:"error_stage,omitempty"`
	Error       string   `json:"error,omitempty"`
	DurationMS  int64    `json:"duration_ms"`
}

func runSessionsExport(database *db.DB, sessionID, outputFile string, out io.Writer) error {
	session, err := database.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	ticks, err := database.ListTicks(sessionID)
	if err != nil {
		return err
	}

	doc := sessionExport{
		ID:          session.ID,
		Mode:        session.Mode,
		Backend:     session.Backend,
		Model:       session.Model,
		Source:      session.Source,
		Status:      string(session.Status),
		Error:       session.Error,
		CreatedAt:   session.CreatedAt,
		CompletedAt: session.CompletedAt,
		Ticks:       make([]tickExport, 0, len(ticks)),
	}
	for _, t := range ticks {
		buttons := []string{}
		for _, b := range t.ButtonList() {
			buttons = append(buttons, string(b))
		}
		doc.Ticks = append(doc.Ticks, tickExport{
			Sequence:    t.Sequence,
			FrameID:     t.FrameID,
			Observation: t.Observation,
			Plan:        t.Plan,
			PlanCreated: t.PlanCreated,
			Buttons:     buttons,
			Raw:         t.Raw,
			Reasoning:   t.Reasoning,
			Fallback:    t.Fallback,
			ErrorKind:   t.ErrorKind,
			ErrorStage:  t.ErrorStage,
			Error:       t.Error,
			DurationMS:  t.DurationMS,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	data = append(data, '\n')

	if outputFile == "" {
		_, err = out.Write(data)
		return err
	}

	if err := os.WriteFile(outputFile, data, filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Fprintf(out, "Exported %d tick(s) to %s\n", len(doc.Ticks), outputFile)
	return nil
}
