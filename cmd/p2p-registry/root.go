package main

import (
	"os"

	"tarun-kavipurapu/p2p-registry/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "p2p-registry",
	Short: "P2P Peer and File Registry",
	Long:  `A peer-discovery and file-availability registry node for a peer-to-peer network, and a client to talk to it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Setup(logger.Options{Level: logLevel, File: logFile})
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Sugar.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $P2P_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append logs to this file")
}
