package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSitemapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sitemap",
		Short: "Writes sitemap.xml and robots.txt to the configured storage",
		Args:  cobra.NoArgs,
		RunE:  runSitemapCommand,
	}
}

func runSitemapCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(cmd.Context(), appInstance)

	out, err := appInstance.PublishSitemap(cmd.Context())
	if err != nil {
		return fmt.Errorf("publish sitemap: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sitemap: %s (%d paths)\nrobots: %s\n", out.Sitemap, out.Paths, out.Robots)
	return nil
}
