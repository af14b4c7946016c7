package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"tarun-kavipurapu/p2p-registry/peer"
	"tarun-kavipurapu/p2p-registry/pkg/discovery"
	"tarun-kavipurapu/p2p-registry/pkg/logger"
	"tarun-kavipurapu/p2p-registry/pkg/protocol"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
)

var (
	serverAddr      string
	listenPort      string
	discover        bool
	discoverTimeout time.Duration
	requestTimeout  time.Duration
	doJoin          bool
	doLeave         bool
	fileToShare     string
	fileToUnshare   string
	peerInteractive bool
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Talk to a Registry Node as a peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if discover {
			ctx, cancel := context.WithTimeout(context.Background(), discoverTimeout)
			info, err := discovery.Discover(ctx)
			cancel()
			if err != nil {
				return fmt.Errorf("discover registry node: %w", err)
			}
			serverAddr = info.Addr()
			logger.Sugar.Infof("Discovered Registry Node %s at %s", info.InstanceName, serverAddr)
		}

		logger.Sugar.Infof("Peer listening on port %s, using Registry Node %s", listenPort, serverAddr)
		c := peer.NewClient(serverAddr, listenPort)
		c.Timeout = requestTimeout
		ctx := context.Background()

		// Handle immediate actions
		if doJoin {
			snap, err := c.Join(ctx)
			if err != nil {
				return err
			}
			printSnapshot(snap)
		}
		if fileToShare != "" {
			if err := c.Share(ctx, fileToShare); err != nil {
				return err
			}
		}
		if fileToUnshare != "" {
			if err := c.Unshare(ctx, fileToUnshare); err != nil {
				return err
			}
		}
		if doLeave {
			if err := c.Leave(ctx); err != nil {
				return err
			}
		}

		if peerInteractive {
			fmt.Println("P2P Peer Interactive Shell")
			fmt.Println("Type 'help' for commands.")

			prompt.New(
				func(in string) { peerExecutor(in, c) },
				peerCompleter,
				prompt.OptionPrefix("peer> "),
				prompt.OptionTitle("P2P Peer"),
			).Run()
		}
		return nil
	},
}

func printSnapshot(snap protocol.Snapshot) {
	fmt.Printf("Peers List (%d):\n", len(snap.Peers))
	for _, p := range snap.Peers {
		fmt.Println("- " + p)
	}
	fmt.Printf("Available Files (%d):\n", len(snap.Files))
	for _, f := range snap.Files {
		fmt.Printf("- %s (%s)\n", f.Name, f.Owner)
	}
}

func peerExecutor(in string, c *peer.Client) {
	in = strings.TrimSpace(in)
	blocks := strings.Fields(in)
	if len(blocks) == 0 {
		return
	}
	ctx := context.Background()

	switch blocks[0] {
	case "exit", "quit":
		os.Exit(0)
	case "join":
		snap, err := c.Join(ctx)
		if err != nil {
			fmt.Printf("Error joining: %v\n", err)
			return
		}
		printSnapshot(snap)
	case "leave":
		if err := c.Leave(ctx); err != nil {
			fmt.Printf("Error leaving: %v\n", err)
		} else {
			fmt.Println("Left the registry.")
		}
	case "share", "unshare":
		if len(blocks) < 2 {
			fmt.Printf("Usage: %s <filename>\n", blocks[0])
			return
		}
		name := strings.Join(blocks[1:], " ")
		var err error
		if blocks[0] == "share" {
			err = c.Share(ctx, name)
		} else {
			err = c.Unshare(ctx, name)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		} else {
			fmt.Printf("%s sent for %s.\n", blocks[0], name)
		}
	case "help":
		fmt.Println("Available commands:")
		fmt.Println("  join                   - Register and list known peers and files")
		fmt.Println("  leave                  - Unregister this peer and its files")
		fmt.Println("  share <name>           - Announce a file held by this peer")
		fmt.Println("  unshare <name>         - Remove a file announcement")
		fmt.Println("  exit                   - Exit")
	default:
		fmt.Println("Unknown command: " + blocks[0])
	}
}

func peerCompleter(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "join", Description: "Join the registry"},
		{Text: "leave", Description: "Leave the registry"},
		{Text: "share", Description: "Share a file"},
		{Text: "unshare", Description: "Stop sharing a file"},
		{Text: "exit", Description: "Exit the peer"},
		{Text: "help", Description: "Show help"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func init() {
	rootCmd.AddCommand(peerCmd)
	peerCmd.Flags().StringVarP(&serverAddr, "server", "s", "127.0.0.1:8000", "Address of the Registry Node")
	peerCmd.Flags().StringVarP(&listenPort, "port", "p", "8001", "Port this peer listens on, reported to the node")
	peerCmd.Flags().BoolVar(&discover, "discover", false, "Find the Registry Node over mDNS instead of --server")
	peerCmd.Flags().DurationVar(&discoverTimeout, "discover-timeout", 3*time.Second, "How long to browse for a node")
	peerCmd.Flags().DurationVar(&requestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	peerCmd.Flags().BoolVarP(&doJoin, "join", "j", false, "Join the registry immediately")
	peerCmd.Flags().BoolVar(&doLeave, "leave", false, "Leave the registry after other actions")
	peerCmd.Flags().StringVarP(&fileToShare, "share", "r", "", "Filename to announce immediately")
	peerCmd.Flags().StringVar(&fileToUnshare, "unshare", "", "Filename to withdraw immediately")
	peerCmd.Flags().BoolVarP(&peerInteractive, "interactive", "i", false, "Start in interactive mode")
}
