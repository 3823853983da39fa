package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nullstream/agentcore/internal/config"
	"github.com/nullstream/agentcore/internal/logging"
	"github.com/nullstream/agentcore/internal/provider"
	"github.com/nullstream/agentcore/internal/react"
	"github.com/nullstream/agentcore/internal/session"
	"github.com/nullstream/agentcore/pkg/types"
	"github.com/spf13/cobra"
)

var (
	runModel      string
	runSession    string
	runFiles      []string
	runPromptFile string
	runDir        string
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Run a single prompt through the ReAct Engine",
	Long: `Run a single prompt to completion and print the agent's response.

Examples:
  agentd run "Fix the bug in main.go"
  agentd run --model anthropic/claude-sonnet-4 "Explain this code"
  agentd run --session sess_123 "Now add tests"`,
	RunE: runInteractive,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (provider/model format)")
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session ID to continue; a new one is created if omitted")
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "File(s) to attach to message")
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "", "Custom system prompt from file")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
}

func runInteractive(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if appConfig.Storage.Path == "" {
		appConfig.Storage.Path = paths.StoragePath()
	}

	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. Usage: agentd run \"your message\"")
	}

	var fileContent strings.Builder
	for _, file := range runFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read file %s: %w", file, err)
		}
		fileContent.WriteString(fmt.Sprintf("\n\n--- File: %s ---\n%s", file, string(content)))
	}
	if fileContent.Len() > 0 {
		message += fileContent.String()
	}

	var systemPrompt string
	if runPromptFile != "" {
		data, err := os.ReadFile(runPromptFile)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		systemPrompt = string(data)
	}

	modelOverride := runModel
	if modelOverride == "" {
		modelOverride = GetGlobalModel()
	}

	ctx := context.Background()
	providerReg, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("initialize providers: %w", err)
	}

	st, err := buildStack(ctx, appConfig, workDir, modelOverride, providerReg)
	if err != nil {
		return err
	}

	var sess *session.Session
	if runSession != "" {
		sess, err = session.Load(ctx, st.Store, runSession)
		if err != nil {
			return fmt.Errorf("load session %s: %w", runSession, err)
		}
	} else {
		promptID, err := st.Store.PutPrompt(ctx, systemPrompt)
		if err != nil {
			return err
		}
		sessionID := fmt.Sprintf("sess_%d", os.Getpid())
		sess, err = session.New(ctx, st.Store, sessionID, promptID, nil, systemPrompt, st.Tools.Definitions(), types.RequestParams{}, st.Model, workDir)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		fmt.Printf("Session: %s\n", sessionID)
	}

	engine := &react.Engine{
		Provider:   st.Provider,
		Dispatcher: &react.Dispatcher{Local: st.Tools, MCP: st.MCP},
		Hooks:      st.Hooks,
		MaxTurns:   appConfig.Engine.MaxTurns,
	}

	emit := func(u types.Update) {
		switch u.Kind {
		case types.UpdateAgentMessageDelta, types.UpdateAgentThoughtDelta:
			fmt.Print(u.Text)
		case types.UpdateToolCallStart:
			fmt.Printf("\n[tool: %s]\n", u.Title)
		}
	}

	_, reason, err := engine.Run(ctx, sess, message, emit)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	logging.Debug().Str("stopReason", string(reason)).Msg("run complete")
	return nil
}
