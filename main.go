package main

import (
	"github.com/sirupsen/logrus"

	"github.com/agentmarket/coordinator/cmd"
	cmdUtils "github.com/agentmarket/coordinator/cmd/utils"
	"github.com/agentmarket/coordinator/internal/logging"
)

// Version is the coordinator's release version.
const Version = "0.1.0"

// GitCommit is populated at build time by
// go build -ldflags "-X main.GitCommit=$GIT_COMMIT"
var GitCommit string

func main() {
	logging.SetLevel(logrus.InfoLevel)

	if err := cmdUtils.LoadEnvFile(); err != nil {
		logging.Fatalf("loading env file: %s", err.Error())
	}

	rootCmd := cmd.SetupCLI(Version, GitCommit)
	if err := rootCmd.Execute(); err != nil {
		logging.Fatalf("executing command: %s", err.Error())
	}
}
