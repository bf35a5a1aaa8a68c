package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/atharvkhisti/WebReckon/internal/aggregate"
	"github.com/atharvkhisti/WebReckon/internal/output"
)

var (
	resultsDir    string
	resultsDB     string
	resultsTarget string
	showRecords   int
)

func newResultsCmd() *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect past discovery runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Long:  "List runs from the history database, or the artifact files when no history exists.",
		Args:  cobra.NoArgs,
		RunE:  runResultsList,
	}

	showCmd := &cobra.Command{
		Use:   "show [run-id|file]",
		Short: "Show one run or artifact",
		Long:  "Reload a run from history, or an artifact file, verify it and print its endpoints.",
		Args:  cobra.ExactArgs(1),
		RunE:  runResultsShow,
	}

	resultsCmd.PersistentFlags().StringVarP(&resultsDir, "output", "o", "results", "Artifact directory")
	resultsCmd.PersistentFlags().StringVar(&resultsDB, "history", "results/history.db", "Run history database")
	listCmd.Flags().StringVar(&resultsTarget, "target", "", "Only runs against this target")
	showCmd.Flags().IntVarP(&showRecords, "limit", "n", 25, "Endpoints to print (0 for all)")

	resultsCmd.AddCommand(listCmd)
	resultsCmd.AddCommand(showCmd)
	return resultsCmd
}

func runResultsList(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(resultsDB); err == nil {
		store, err := output.NewBoltStore(resultsDB)
		if err != nil {
			return err
		}
		defer store.Close()

		var runs []output.RunSummary
		if resultsTarget != "" {
			runs, err = store.ListTarget(resultsTarget)
		} else {
			runs, err = store.List()
		}
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tSTATE\tAPIS\tRETRIES\tTARGET")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.State, r.Endpoints, r.RetryCount, r.Target)
		}
		return tw.Flush()
	}

	files, err := output.ListArtifacts(resultsDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No artifacts found in", resultsDir)
		return nil
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	ref := args[0]

	if looksLikeFile(ref) {
		a, err := output.LoadArtifact(ref)
		if err != nil {
			return err
		}
		printArtifact(ref, a)
		return nil
	}

	store, err := output.NewBoltStore(resultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Load(ref)
	if err != nil {
		return err
	}

	fmt.Printf("Run:         %s\n", run.ID)
	fmt.Printf("Target:      %s\n", run.Target)
	fmt.Printf("Started:     %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Printf("Outcome:     %s (attempts %d, retries %d)\n", run.State, run.Attempts, run.RetryCount)
	if run.Error != "" {
		fmt.Printf("Error:       %s\n", run.Error)
	}

	if run.ArtifactPath != "" {
		if a, err := output.LoadArtifact(run.ArtifactPath); err == nil {
			printArtifact(run.ArtifactPath, a)
			return nil
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	if run.Artifact != nil {
		if err := run.Artifact.Verify(); err != nil {
			return err
		}
		printArtifact("history", run.Artifact)
	}
	return nil
}

func looksLikeFile(ref string) bool {
	if strings.HasSuffix(ref, ".json") || strings.ContainsRune(ref, filepath.Separator) {
		return true
	}
	_, err := os.Stat(ref)
	return err == nil
}

func printArtifact(source string, a *aggregate.Artifact) {
	fmt.Println()
	fmt.Printf("Artifact:    %s (verified)\n", source)
	fmt.Printf("Captured:    %s\n", a.Timestamp.Local().Format(time.DateTime))
	fmt.Printf("Endpoints:   %d\n", a.Summary.Total)
	fmt.Println()

	records := a.Records()
	count := len(records)
	if showRecords > 0 && count > showRecords {
		count = showRecords
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range records[:count] {
		flags := ""
		if r.IsThirdParty {
			flags += " third-party"
		}
		if r.MaybeSensitive {
			flags += " sensitive"
		}
		if r.IsSuspicious {
			flags += " suspicious"
		}
		fmt.Fprintf(tw, "  [%s]\t%s\t%s\t%s\n", r.Protocol, r.Method, r.URL, strings.TrimSpace(flags))
	}
	tw.Flush()
	if len(records) > count {
		fmt.Printf("  ... and %d more\n", len(records)-count)
	}
}

// printRun lists where the run went and, when probed, the socket results.
func printRun(run *output.Run) {
	if run.ArtifactPath != "" {
		fmt.Printf("Artifact: %s\n", run.ArtifactPath)
	}
	if run.Error != "" {
		fmt.Printf("Error:    %s\n", run.Error)
	}
	if len(run.Probes) > 0 {
		fmt.Println()
		fmt.Println("WebSocket Probes:")
		for _, p := range run.Probes {
			status := "failed"
			if p.Connected {
				status = fmt.Sprintf("connected, %d messages", len(p.Messages))
			}
			fmt.Printf("  %s (%s)\n", p.URL, status)
		}
	}
	fmt.Println()
}

// parseHeaders turns "Name: value" flags into a header map.
func parseHeaders(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", v)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}
