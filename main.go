// ABOUTME: Entry point for the fastfood console CLI
// ABOUTME: Sign-in, account recovery and live role dashboards for restaurant operations

package main

import (
	"fmt"
	"os"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
