// Package cli implements ordersctl, the operator tool for schema migrations and order maintenance.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a2z-dev007/ecommerce-backend/internal/platform/idempotency"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

const envPrefix = "ORDERSCTL"

// Migrator applies and rolls back schema migrations.
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
	Close() error
}

// Runtime hands commands the backends they operate on. Each accessor connects lazily so commands
// only pay for what they use.
type Runtime interface {
	Orders(ctx context.Context) (services.OrderService, error)
	Migrator(ctx context.Context) (Migrator, error)
	Idempotency(ctx context.Context) (idempotency.Store, error)
	Close(ctx context.Context) error
}

// RuntimeOptions carries the global flags a Runtime is built from.
type RuntimeOptions struct {
	EnvFile string
	Logger  *zap.Logger
}

// RuntimeFactory builds the Runtime once flags are parsed.
type RuntimeFactory func(ctx context.Context, opts RuntimeOptions) (Runtime, error)

type app struct {
	v       *viper.Viper
	factory RuntimeFactory
	runtime Runtime
	logger  *zap.Logger
	now     func() time.Time
	cancel  context.CancelFunc
}

// Option customises the root command.
type Option func(*app)

// WithRuntimeFactory swaps the backend wiring, mainly for tests.
func WithRuntimeFactory(factory RuntimeFactory) Option {
	return func(a *app) {
		if factory != nil {
			a.factory = factory
		}
	}
}

// WithClock overrides the clock used by maintenance commands.
func WithClock(clock func() time.Time) Option {
	return func(a *app) {
		if clock != nil {
			a.now = clock
		}
	}
}

// NewRootCommand assembles the ordersctl command tree. Flags may also be set through ORDERSCTL_*
// environment variables.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{
		v:       viper.New(),
		factory: NewEnvRuntime,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	root := &cobra.Command{
		Use:           "ordersctl",
		Short:         "Operate the order service: migrations, order maintenance, idempotency cleanup",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("env-file", "", "dotenv file read before the process environment")
	flags.String("log-level", "warn", "log level written to stderr")
	flags.Duration("timeout", 30*time.Second, "deadline for each command")
	flags.String("actor", "ordersctl", "actor id recorded on order mutations")
	for _, name := range []string{"env-file", "log-level", "timeout", "actor"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(a.migrateCommand(), a.ordersCommand(), a.idempotencyCommand())
	return root
}

// Execute runs ordersctl with ctx.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(a.v.GetString("log-level")))); err != nil {
		return fmt.Errorf("invalid --log-level %q", a.v.GetString("log-level"))
	}
	a.logger = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(cmd.ErrOrStderr()),
		level,
	))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := a.v.GetDuration("timeout"); timeout > 0 {
		ctx, a.cancel = context.WithTimeout(ctx, timeout)
	}
	cmd.SetContext(ctx)

	runtime, err := a.factory(ctx, RuntimeOptions{EnvFile: a.v.GetString("env-file"), Logger: a.logger})
	if err != nil {
		return err
	}
	a.runtime = runtime
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.cancel != nil {
		defer a.cancel()
	}
	if a.runtime == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := a.runtime.Close(ctx)
	a.runtime = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// run wraps a command body so the runtime is released whether or not the body fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := describeError(fn(cmd, args))
		return errors.Join(err, a.teardown(context.WithoutCancel(cmd.Context())))
	}
}

func (a *app) actor() string {
	actor := strings.TrimSpace(a.v.GetString("actor"))
	if actor == "" {
		return "ordersctl"
	}
	return actor
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// describeError unwraps service errors into their stable code so scripts can match on it.
func describeError(err error) error {
	if err == nil {
		return nil
	}
	if svcErr, ok := services.AsError(err); ok {
		return fmt.Errorf("%s: %s", svcErr.Code, svcErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out: %w", err)
	}
	return err
}
