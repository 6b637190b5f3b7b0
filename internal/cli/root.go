// Package cli implements the reqflow command line.
package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/adamwoolhether/reqflow/client"
	"github.com/adamwoolhether/reqflow/client/throttle"
)

// settings holds the persistent flags shared by every command.
type settings struct {
	profile      string
	timeout      time.Duration
	maxRedirects int
	noFollow     bool
	userAgent    string
	rps          int
	burst        int
	verbose      bool
	noColor      bool
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	var s settings

	cmd := &cobra.Command{
		Use:   "reqflow",
		Short: "Send HTTP requests from the command line",
		Long: `reqflow sends HTTP requests with validated headers and bodies,
follows redirects, undoes content encodings and streams downloads to disk.

Client settings can be kept in a YAML profile and overridden by flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&s.profile, "profile", "", "Path to a YAML client profile")
	flags.DurationVar(&s.timeout, "timeout", client.DefaultTimeout, "Timeout for the whole request, 0 disables it")
	flags.IntVar(&s.maxRedirects, "max-redirects", client.DefaultMaxRedirects, "Maximum number of redirects to follow")
	flags.BoolVar(&s.noFollow, "no-follow", false, "Return redirect responses instead of following them")
	flags.StringVarP(&s.userAgent, "user-agent", "A", client.DefaultUserAgent, "User-Agent sent when the request has none")
	flags.IntVar(&s.rps, "rps", 0, "Throttle to this many requests per second")
	flags.IntVar(&s.burst, "burst", 1, "Burst capacity when throttling")
	flags.BoolVarP(&s.verbose, "verbose", "v", false, "Log redirects and transport details")
	flags.BoolVar(&s.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newGetCommand(&s),
		newSendCommand(&s),
		newDownloadCommand(&s),
		newProfileCommand(&s),
		newVersionCommand(),
	)

	return cmd
}

// Execute runs the command line with args and returns the exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		noColor, _ := cmd.PersistentFlags().GetBool("no-color")
		newConsole(stderr, noColor).errorf("%v", err)
	}

	return exitCode(err)
}

// loadProfile reads the --profile file, or returns the zero Profile.
func (s *settings) loadProfile() (Profile, error) {
	if s.profile == "" {
		return Profile{}, nil
	}

	p, err := LoadProfile(s.profile)
	if err != nil {
		return Profile{}, exitErr(ExitConfigError, err)
	}

	return p, nil
}

// effectiveProfile merges the explicitly set flags over the profile file.
func (s *settings) effectiveProfile(flags *pflag.FlagSet) (Profile, error) {
	p, err := s.loadProfile()
	if err != nil {
		return Profile{}, err
	}

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "timeout":
			p.Timeout = &s.timeout
		case "max-redirects":
			p.MaxRedirects = &s.maxRedirects
		case "no-follow":
			follow := !s.noFollow
			p.FollowRedirects = &follow
		case "user-agent":
			p.UserAgent = s.userAgent
		}
	})

	if flags.Changed("rps") || flags.Changed("burst") {
		cfg := throttle.Config{RPS: s.rps, Burst: s.burst}
		if p.Throttle != nil {
			if !flags.Changed("rps") {
				cfg.RPS = p.Throttle.RPS
			}
			if !flags.Changed("burst") {
				cfg.Burst = p.Throttle.Burst
			}
		}
		p.Throttle = &cfg
	}

	return p, nil
}

// newClient builds a client from the profile and flags. Flags win.
func (s *settings) newClient(cmd *cobra.Command) (*client.Client, error) {
	p, err := s.effectiveProfile(cmd.Flags())
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if s.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	c, err := client.Build(append(p.Options(), client.WithLogger(logger))...)
	if err != nil {
		return nil, exitErr(ExitConfigError, err)
	}

	return c, nil
}

func (s *settings) console(cmd *cobra.Command) *console {
	return newConsole(cmd.ErrOrStderr(), s.noColor)
}
