package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1a73e8"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f6368"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D93025"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00635D"))

	isTTY = isatty.IsTerminal(os.Stdout.Fd())
)

func printTitle(s string) {
	if isTTY {
		fmt.Println(titleStyle.Render(s))
		return
	}
	fmt.Println(s)
}

func printInfo(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if isTTY {
		fmt.Println(infoStyle.Render(s))
		return
	}
	fmt.Println(s)
}

func printOK(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if isTTY {
		fmt.Println(okStyle.Render(s))
		return
	}
	fmt.Println(s)
}

func printErr(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if isTTY {
		fmt.Fprintln(os.Stderr, errorStyle.Render(s))
		return
	}
	fmt.Fprintln(os.Stderr, s)
}

// progressLine renders a fractional [0,1] progress as a single
// carriage-return-updated line when attached to a terminal, or as
// sparse log lines every ~10% when output is piped.
func progressLine(label string) func(float64) {
	lastTenth := -1
	return func(f float64) {
		if isTTY {
			fmt.Printf("\r%s: %5.1f%%", label, f*100)
			if f >= 1 {
				fmt.Println()
			}
			return
		}
		tenth := int(f * 10)
		if tenth != lastTenth {
			lastTenth = tenth
			fmt.Printf("%s: %d%%\n", label, tenth*10)
		}
	}
}
