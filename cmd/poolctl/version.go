package main

import (
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// VersionInfo is the JSON output of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	})
}

func currentVersion() VersionInfo {
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func runVersion() error {
	v := currentVersion()
	if jsonOut {
		return printJSON(v)
	}
	printInfo("poolctl %s (%s, %s)\n", v.Version, v.GoVersion, v.Platform)
	printInfo("  commit: %s\n", v.Commit)
	printInfo("  built: %s\n", v.Built)
	return nil
}
