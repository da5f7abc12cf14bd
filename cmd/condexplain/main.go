// Command condexplain prints the SQL a condition tree renders to in every
// supported dialect.
//
//	condexplain --key id,code --ids 1:1,2:1 --where "x = 1"
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
