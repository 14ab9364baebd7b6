package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/harunnryd/ignite/internal/config"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ignite",
	Short: "Bootstrap a sandboxed runtime and hand off to a program",
	Long: `ignite acquires a sandboxed execution environment, installs the packages a
program needs, binds the environment to an output surface, fetches the program
and hands control to it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Log.Level)
		return nil
	},
}

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is the pipeline's own status for a failed launch, 2 for bad
// input such as an unknown backend or a plan without a source, else 1.
func exitCode(err error) int {
	var ee *exitError
	switch {
	case errors.As(err, &ee) && ee.code > 0:
		return ee.code
	case igniteErrors.IsCategory(err, igniteErrors.ErrInvalidInput):
		return 2
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ignite/config.yaml)")
	rootCmd.PersistentFlags().String("log.level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
}
