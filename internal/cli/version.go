package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/reqflow/client"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reqflow version %s\n", client.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newProfileCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the effective client profile as YAML",
		Long: `Profile prints the settings a request would use: the --profile file
with any explicitly set flags applied over it. The output is itself a
valid profile.`,
		Example: `  reqflow --profile api.yaml --timeout 5s profile > api-fast.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.effectiveProfile(cmd.Flags())
			if err != nil {
				return err
			}

			b, err := p.Encode()
			if err != nil {
				return exitErr(ExitConfigError, err)
			}

			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
