// The main package for the ranktrack executable.
package main

import "github.com/ranktrack/ranktrack/cmd"

func main() {
	cmd.Execute()
}
