package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// stdin is read by confirm; tests replace it.
var stdin io.Reader = os.Stdin

// confirm asks a yes/no question and reports whether the answer was yes.
func confirm(prompt string) bool {
	fmt.Fprintf(ui.Out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(ui.Out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
