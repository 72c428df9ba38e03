package commands

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// buildInfo describes the running binary
type buildInfo struct {
	Version string
	Commit  string
	Date    string
}

var build = readBuildInfo()

// readBuildInfo fills in module version and VCS stamps when the binary was
// built from a module or a checkout.
func readBuildInfo() buildInfo {
	bi := buildInfo{Version: "dev", Commit: "unknown", Date: "unknown"}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		bi.Version = v
	}

	for _, setting := range info.Settings {
		if setting.Value == "" {
			continue
		}
		switch setting.Key {
		case "vcs.revision":
			bi.Commit = setting.Value
			if len(bi.Commit) > 7 {
				bi.Commit = bi.Commit[:7]
			}
		case "vcs.time":
			bi.Date = setting.Value
		}
	}
	return bi
}

func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, build.Version)
				return nil
			}
			fmt.Fprintf(out, "lightproof version %s\n", build.Version)
			fmt.Fprintf(out, "  commit: %s\n", build.Commit)
			fmt.Fprintf(out, "  built:  %s\n", build.Date)
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")

	return cmd
}

// GetVersion returns the version string
func GetVersion() string {
	return build.Version
}
