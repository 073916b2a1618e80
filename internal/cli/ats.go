package cli

import (
	"os"
	"path/filepath"

	"github.com/etk18/portfolio/internal/ats"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ats <file>",
		Short: "Score a PDF or DOCX resume",
		Long:  "Extracts the resume text and prints the ATS analysis as JSON. The usage gate does not apply.",
		Args:  cobra.ExactArgs(1),
		Run:   runATS,
	}

	RootCmd.AddCommand(cmd)
}

func runATS(cmd *cobra.Command, args []string) {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		exitErr("read resume", err)
	}

	a, err := openApp()
	if err != nil {
		exitErr("open app", err)
	}
	defer a.Close()

	report, err := ats.Analyze(cmd.Context(), a.Extractor, a.Analyzer, filepath.Base(path), data)
	if err != nil {
		exitErr("analyze", err)
	}
	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		exitErr("write", err)
	}
}
