package report

import (
	"strings"

	"github.com/suPer8Hu/journal-platform/internal/journal"
)

const reportTemplate = `You are a professional IT Documentation Specialist. I am providing you with daily task entries from a BSIT student/intern's journal.

Your task is to generate a professional 'Weekly Progress Report' suitable for documentation and submission to a supervisor.

**Formatting Rules:**
- Use proper Markdown headers (e.g., '# Title', '## Section').
- Do NOT use bold keys for main sections (e.g., don't use '**1. Executive Summary**', use '## Executive Summary').
- Use bullet points for lists.
- The report must be **technical, concise, and professional**.
- Do NOT use any fantasy, ancient, or flowery language. Refine the user's rough notes into clear, professional technical writing.

Structure the report as follows:
# Weekly Progress Report

## Executive Summary
(A high-level overview of the week's progress and main focus.)

## Technical Accomplishments
(A bulleted list of specific tasks completed, features implemented, and technologies used. Use strong action verbs like 'Implemented', 'Refactored', 'Debugged'.)

## Challenges & Resolutions
(A section detailing specific technical hurdles encountered and the solutions applied.)

## Key Learnings
(New technical skills or concepts reinforced during the week.)

## Forward Outlook
(Brief goals for the next week based on current progress.)

Journal Entries:
`

// FormatEntries renders entries as Date/Title/Content blocks, each closed by
// a "---" line.
func FormatEntries(entries []journal.Entry) string {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, "Date: "+e.EntryDate+"\nTitle: "+e.Title+"\nContent: "+e.Content+"\n---")
	}
	return strings.Join(blocks, "\n")
}

func BuildPrompt(entries []journal.Entry) string {
	return reportTemplate + FormatEntries(entries)
}

// PeriodOf returns the first and last entry dates. entries must already be
// sorted by date ascending and non-empty.
func PeriodOf(entries []journal.Entry) Period {
	return Period{Start: entries[0].EntryDate, End: entries[len(entries)-1].EntryDate}
}
