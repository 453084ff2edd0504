package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTOML  OutputFormat = "toml"
	FormatHuman OutputFormat = "human"
)

// FormatResponse renders resp in the requested output format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatTOML:
		return formatTOML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatTOML(resp interface{}) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(resp); err != nil {
		return "", fmt.Errorf("failed to marshal TOML: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *HelperResponseCLI:
		return formatHelperHuman(v)
	case *InspectResponseCLI:
		return formatInspectHuman(v)
	case *DoctorResponseCLI:
		return formatDoctorHuman(v)
	case *RunsResponseCLI:
		return formatRunsHuman(v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatHelperHuman(resp *HelperResponseCLI) (string, error) {
	var b strings.Builder

	if resp.Reused {
		b.WriteString("(reused previous dcm2niix output)\n")
	}
	b.WriteString(fmt.Sprintf("Sidecars in %s:\n\n", resp.OutputDir))
	if len(resp.Sidecars) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, sc := range resp.Sidecars {
		b.WriteString(fmt.Sprintf("  %s\n", sc.Filename))
		for _, key := range helperKeys {
			if v, ok := sc.Fields[key]; ok {
				b.WriteString(fmt.Sprintf("    %-18s %s\n", key+":", v))
			}
		}
	}
	b.WriteString("\nUse these fields as criteria in the descriptions of your config file.")
	return b.String(), nil
}

func formatInspectHuman(resp *InspectResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%-8s %-10s %-32s %-32s %s\n", "Series", "Modality", "SeriesDescription", "ProtocolName", "Files"))
	b.WriteString(strings.Repeat("─", 92) + "\n")
	for _, s := range resp.Series {
		b.WriteString(fmt.Sprintf("%-8s %-10s %-32s %-32s %d\n", s.Number, s.Modality, truncate(s.Description, 32), truncate(s.Protocol, 32), s.Files))
	}
	b.WriteString(fmt.Sprintf("\n%d series", len(resp.Series)))
	if resp.Skipped > 0 {
		b.WriteString(fmt.Sprintf(", %d non-DICOM files skipped", resp.Skipped))
	}
	return b.String(), nil
}

func formatDoctorHuman(resp *DoctorResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("dcm2bids v%s\n", resp.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, check := range resp.Checks {
		icon := "✓"
		switch check.Status {
		case "warn":
			icon = "⚠"
		case "fail":
			icon = "✗"
		}
		b.WriteString(fmt.Sprintf("%s %s: %s\n", icon, check.Name, check.Message))
		for _, fix := range check.SuggestedFixes {
			b.WriteString(fmt.Sprintf("    → %s\n", fix))
		}
	}

	if resp.Healthy {
		b.WriteString("\nAll checks passed.")
	} else {
		b.WriteString("\nSome checks failed.")
	}
	return b.String(), nil
}

func formatRunsHuman(resp *RunsResponseCLI) (string, error) {
	var b strings.Builder

	if len(resp.Runs) == 0 {
		return "No runs recorded in " + resp.Ledger, nil
	}

	for _, r := range resp.Runs {
		session := r.Session
		if session == "" {
			session = "-"
		}
		b.WriteString(fmt.Sprintf("%s  %s  %-10s %-10s %-9s acquisitions=%d failures=%d\n",
			shortID(r.ID), r.StartedAt, r.Participant, session, r.Status, r.Acquisitions, r.Failures))
	}

	if len(resp.Files) > 0 {
		b.WriteString("\nFiles:\n")
		for _, f := range resp.Files {
			b.WriteString(fmt.Sprintf("  %-6s %s\n", f.Action, f.Dst))
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
