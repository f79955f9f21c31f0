package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	" _____     _                 ",
	"|_   _| __(_) __ _  __ _  ___ ",
	"  | || '__| |/ _` |/ _` |/ _ \\",
	"  | || |  | | (_| | (_| |  __/",
	"  |_||_|  |_|\\__,_|\\__, |\\___|",
	"                   |___/      ",
}

// Teal to green, one shade per line.
var bannerColors = []string{"#2dd4bf", "#34d399", "#4ade80", "#a3e635", "#facc15", "#fbbf24"}

// PrintBanner writes the colored banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line).Foreground(p.Color(bannerColors[i])))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, termenv.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}
