package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for onepage.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onepage",
		Short: "Mirror a single web page with its static assets",
		Long: `onepage downloads a single web page together with the same-origin
stylesheets, scripts and images it references. Stylesheets are followed
recursively through url() and @import, so fonts and background images are
mirrored as well.

Files are written under the output directory using their site-relative
paths; the page itself becomes index.html. Every run is recorded in a
local history database so that two mirrors of the same page can be
compared later.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
