package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tarun-kavipurapu/p2p-registry/pkg/logger"
	"tarun-kavipurapu/p2p-registry/registry"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
)

var (
	nodeAddr        string
	nodeWorkers     int
	nodeIOTimeout   time.Duration
	nodeAdvertise   bool
	nodeInstance    string
	nodeMetrics     time.Duration
	nodeInteractive bool
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Start a Registry Node",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []registry.Option{
			registry.WithListenAddr(nodeAddr),
			registry.WithWorkers(nodeWorkers),
			registry.WithIOTimeout(nodeIOTimeout),
			registry.WithMetricsInterval(nodeMetrics),
		}
		if nodeAdvertise {
			opts = append(opts, registry.WithAdvertise(nodeInstance))
		}

		logger.Sugar.Infof("Starting Registry Node on %s", nodeAddr)
		node := registry.NewNode(registry.NewConfig(opts...))

		if nodeInteractive {
			if err := node.Listen(); err != nil {
				return err
			}
			// Run node in background
			go node.Serve()

			fmt.Println("P2P Registry Node Interactive Shell")
			fmt.Println("Type 'help' for commands.")

			p := prompt.New(
				func(in string) { nodeExecutor(in, node) },
				nodeCompleter,
				prompt.OptionPrefix("node> "),
				prompt.OptionTitle("P2P Registry Node"),
			)
			p.Run()
			return node.Stop()
		}

		// Run node in foreground
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			// A second signal gets the default behavior and kills the process.
			signal.Stop(sigCh)
			logger.Sugar.Info("Shutting down Registry Node...")
			if err := node.Stop(); err != nil {
				logger.Sugar.Errorf("Error stopping node: %v", err)
			}
		}()
		return node.Start()
	},
}

func nodeExecutor(in string, node *registry.Node) {
	in = strings.TrimSpace(in)
	blocks := strings.Fields(in)
	if len(blocks) == 0 {
		return
	}

	switch blocks[0] {
	case "exit", "quit":
		fmt.Println("Stopping node...")
		if err := node.Stop(); err != nil {
			fmt.Printf("Error stopping node: %v\n", err)
		}
		os.Exit(0)
	case "status":
		fmt.Println(node.GetStatus())
	case "list":
		if len(blocks) < 2 {
			fmt.Println("Usage: list peers|files")
			return
		}
		switch blocks[1] {
		case "peers":
			peers := node.Store().ListPeers()
			if len(peers) == 0 {
				fmt.Println("No peers registered.")
				return
			}
			fmt.Println("Peers List:")
			for _, p := range peers {
				fmt.Println("- " + p)
			}
		case "files":
			files := node.Store().ListFiles()
			if len(files) == 0 {
				fmt.Println("No files available.")
				return
			}
			fmt.Println("Available Files:")
			for _, f := range files {
				fmt.Printf("- %s (%s)\n", f.Name, f.Owner)
			}
		default:
			fmt.Println("Usage: list peers|files")
		}
	case "help":
		fmt.Println("Available commands:")
		fmt.Println("  status       - Show node status")
		fmt.Println("  list peers   - List registered peers")
		fmt.Println("  list files   - List available files and their owners")
		fmt.Println("  exit         - Stop node and exit")
	default:
		fmt.Println("Unknown command: " + blocks[0])
	}
}

func nodeCompleter(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "status", Description: "Show node status and stats"},
		{Text: "list peers", Description: "List all registered peer addresses"},
		{Text: "list files", Description: "List all available files"},
		{Text: "exit", Description: "Exit the node"},
		{Text: "help", Description: "Show help"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func init() {
	rootCmd.AddCommand(nodeCmd)
	defaults := registry.DefaultConfig()
	nodeCmd.Flags().StringVarP(&nodeAddr, "addr", "a", defaults.ListenAddr, "Address for the node to listen on")
	nodeCmd.Flags().IntVarP(&nodeWorkers, "workers", "w", defaults.Workers, "Connections handled at once (1 = strictly sequential)")
	nodeCmd.Flags().DurationVar(&nodeIOTimeout, "io-timeout", defaults.IOTimeout, "Per-connection deadline (0 = wait forever)")
	nodeCmd.Flags().BoolVar(&nodeAdvertise, "mdns", false, "Advertise the node over mDNS")
	nodeCmd.Flags().StringVar(&nodeInstance, "name", "", "mDNS instance name (default derived from hostname)")
	nodeCmd.Flags().DurationVar(&nodeMetrics, "metrics-interval", 0, "Log metrics at this interval (0 = off)")
	nodeCmd.Flags().BoolVarP(&nodeInteractive, "interactive", "i", false, "Start in interactive mode")
}
