// Command flashverif runs the serial-flash controller regression.
package main

import "github.com/sarchlab/flashverif/flashverif/cmd"

func main() {
	cmd.Execute()
}
