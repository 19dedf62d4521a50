// af turns generative-agent output into reviewable pull requests.
package main

import (
	"os"

	"github.com/xcawolfe-amzn/autoforge/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
