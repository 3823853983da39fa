package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nullstream/agentcore/internal/adapter"
	"github.com/nullstream/agentcore/internal/config"
	"github.com/nullstream/agentcore/internal/logging"
	"github.com/nullstream/agentcore/internal/provider"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"
)

var serveDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the protocol adapter over stdio",
	Long: `Start agentd as a long-lived JSON-RPC 2.0 peer over stdin/stdout.

A client speaks initialize/new_session/load_session/prompt/cancel against
this process; agentd streams session/update notifications back as the
ReAct Engine runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providerReg, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to initialize some providers")
	}

	st, err := buildStack(ctx, appConfig, workDir, GetGlobalModel(), providerReg)
	if err != nil {
		return err
	}

	a := adapter.New(st.Store, st.Provider, st.Hooks, appConfig.Engine.MaxTurns)

	stream := jsonrpc2.NewBufferedStream(stdioReadWriteCloser{}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, a)

	logging.Info().Msg("agentd protocol adapter listening on stdio")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logging.Info().Msg("shutting down")
	case <-conn.DisconnectNotify():
		logging.Info().Msg("client disconnected")
	}

	if st.MCP != nil {
		if err := st.MCP.Close(); err != nil {
			logging.Warn().Err(err).Msg("error closing tool-protocol client")
		}
	}

	return conn.Close()
}

// stdioReadWriteCloser adapts os.Stdin/os.Stdout to io.ReadWriteCloser for
// jsonrpc2's stream codec.
type stdioReadWriteCloser struct{}

func (stdioReadWriteCloser) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriteCloser) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioReadWriteCloser) Close() error {
	_ = os.Stdin.Close()
	return os.Stdout.Close()
}
