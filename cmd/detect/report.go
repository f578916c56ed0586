package main

import (
	"fmt"
	"io"

	"github.com/teslashibe/go-detect/pkg/session"
)

// printReport writes the summary, the box grid for two or more boxes and
// the processed image URL.
func printReport(w io.Writer, s session.State) {
	if s.Summary == "" {
		fmt.Fprintln(w, "Nothing detected.")
	} else {
		fmt.Fprintln(w, s.Summary)
	}

	if s.ShowGrid() {
		fmt.Fprintf(w, "\nNumber of boxes: %d\n", s.NumberOfBoxes)
		for i, d := range s.Batch.Detections {
			fmt.Fprintf(w, "  %2d. %s\n", i+1, d)
		}
	}

	if s.ProcessedImageURL != "" {
		fmt.Fprintf(w, "\nProcessed image: %s\n", s.ProcessedImageURL)
	}
}
