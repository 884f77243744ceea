package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/hitushen/hostsummary/internal/models"
)

func writeJSON(w io.Writer, resp models.SummarizeResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func tableData(items []models.HostSummary) pterm.TableData {
	data := pterm.TableData{{"Host", "Highest", "Risks", "Key Services", "Top Recommendation"}}
	for _, item := range items {
		top := ""
		if len(item.Recommendations) > 0 {
			top = item.Recommendations[0]
		}
		data = append(data, []string{
			item.HostID,
			string(highest(item.Risks)),
			strconv.Itoa(len(item.Risks)),
			keyServices(item.KeyServices),
			top,
		})
	}
	return data
}

func renderTable(items []models.HostSummary) error {
	if len(items) == 0 {
		pterm.Warning.Println("No summaries produced.")
		return nil
	}
	return pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false).
		WithData(tableData(items)).
		Render()
}

func highest(risks []models.Risk) models.Severity {
	var top models.Severity
	for _, r := range risks {
		if r.Severity.Rank() > top.Rank() {
			top = r.Severity
		}
	}
	return top
}

func keyServices(services []models.KeyService) string {
	parts := make([]string, 0, len(services))
	for _, ks := range services {
		switch {
		case ks.Port != nil && ks.Name != nil:
			parts = append(parts, fmt.Sprintf("%d/%s", *ks.Port, *ks.Name))
		case ks.Port != nil:
			parts = append(parts, strconv.Itoa(*ks.Port))
		case ks.Name != nil:
			parts = append(parts, *ks.Name)
		}
	}
	return strings.Join(parts, ", ")
}
