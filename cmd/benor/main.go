// Benor runs Ben-Or randomized binary consensus.
package main

import "github.com/relab/benor/internal/cli"

func main() {
	cli.Execute()
}
