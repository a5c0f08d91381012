package ics

import (
	"regexp"
	"strings"
)

const (
	beginEvent = "BEGIN:VEVENT"
	endEvent   = "END:VEVENT"
)

var (
	// A line break followed by exactly one space or tab is a fold.
	foldRe = regexp.MustCompile(`\r?\n[ \t]`)
	lineRe = regexp.MustCompile(`\r?\n`)
)

// unfold joins folded continuation lines and returns the logical lines.
func unfold(text string) []string {
	return lineRe.Split(foldRe.ReplaceAllString(text, ""), -1)
}

// SplitBlocks groups the logical lines of text into one body per VEVENT,
// in encounter order. BEGIN/END marker lines are not part of the body and
// a block that is never closed is dropped.
func SplitBlocks(text string) []string {
	blocks := make([]string, 0)

	var current []string
	open := false
	for _, line := range unfold(text) {
		switch {
		case strings.EqualFold(line, beginEvent):
			// A second BEGIN without END restarts the block.
			current = current[:0]
			open = true
		case strings.EqualFold(line, endEvent):
			if open {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
				open = false
			}
		case open:
			current = append(current, line)
		}
	}

	return blocks
}
