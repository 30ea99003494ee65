package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maine/youtube_digest/internal/config"
	"github.com/maine/youtube_digest/internal/video"
)

var (
	flagInput  string
	flagOutput string
)

var rootCmd = &cobra.Command{
	Use:   "resolve-channels [channel-url...]",
	Short: "Resolve YouTube channel pages to channel ids and add them to channels.yaml",
	Long: `resolve-channels reads channel page URLs (arguments or --input, one per line,
"#" starts a comment), finds the channel id and name of each page and appends
new channels to the channels file. Channels already listed are kept as they are.

Examples:
  resolve-channels @lexfridman https://www.youtube.com/@DwarkeshPatel
  resolve-channels --input subscriptions.txt --output configs/channels.yaml`,
	SilenceUsage: true,
	RunE:         runResolve,
}

func init() {
	rootCmd.Flags().StringVar(&flagInput, "input", "", "file with one channel URL per line")
	rootCmd.Flags().StringVar(&flagOutput, "output", "configs/channels.yaml", "channels file to update")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	urls := append([]string(nil), args...)
	if flagInput != "" {
		fromFile, err := readURLs(flagInput)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no channel URLs given")
	}

	existing, err := config.LoadChannels(flagOutput)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	out := cmd.OutOrStdout()
	r := newResolver(nil)
	var resolved []video.Channel
	failed := 0
	for _, u := range urls {
		ch, err := r.resolve(cmd.Context(), u)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", u, err)
			continue
		}
		fmt.Fprintf(out, "  %s -> %s (%s)\n", u, ch.ID, ch.Label())
		resolved = append(resolved, ch)
	}

	merged, added := mergeChannels(existing, resolved)
	if added > 0 {
		if err := config.SaveChannels(flagOutput, merged); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Resolved %d of %d, added %d new, %d channels in %s\n",
		len(resolved), len(urls), added, len(merged), flagOutput)
	if failed > 0 {
		return fmt.Errorf("%d channel URLs could not be resolved", failed)
	}
	return nil
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return urls, nil
}
