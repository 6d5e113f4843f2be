// Command kademlia runs a single DHT node with an interactive REPL for
// put/get/join, in the shape of the teacher's own cmd/ entrypoints but
// built on urfave/cli/v2 rather than hand-rolled flag parsing, grounded in
// the node/put/get CLI described by Stromo01-D7024E's internal/cli
// package (itself built on cobra — ported here to the dependency this
// repository actually carries).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"go.dedis.ch/kademlia/peer"
	"go.dedis.ch/kademlia/peer/impl"
	"go.dedis.ch/kademlia/registry/standard"
	"go.dedis.ch/kademlia/transport/udp"
	"go.dedis.ch/kademlia/types"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	app := &cli.App{
		Name:  "kademlia",
		Usage: "run a Kademlia DHT node",
		Commands: []*cli.Command{
			runCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start a node and attach an interactive REPL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:0", Usage: "address to listen on"},
			&cli.StringFlag{Name: "bootstrap", Usage: "address of an existing node to join through"},
			&cli.DurationFlag{Name: "ack-timeout", Value: time.Second, Usage: "per-query reply deadline"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	transp := udp.NewUDP()
	socket, err := transp.CreateSocket(c.String("addr"))
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.String("addr"), err)
	}
	defer socket.Close()

	conf := peer.NewConfiguration(socket, standard.NewRegistry(), peer.WithAckTimeout(c.Duration("ack-timeout")))
	node := impl.NewPeer(conf)

	if err := node.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	defer node.Stop()

	fmt.Printf("listening on %s, id %s\n", socket.GetAddress(), node.OwnID())

	if bootstrap := c.String("bootstrap"); bootstrap != "" {
		seed := types.Node{ID: types.IdentifierFromString(bootstrap), Addr: bootstrap}
		fmt.Printf("joining via %s\n", bootstrap)
		node.JoinNetwork(seed)
	}

	repl(node)
	return nil
}

// repl is the interactive loop, grounded in Stromo01-D7024E's
// startInteractiveCLI: a bufio.Scanner over stdin dispatching on the
// first whitespace-separated token.
func repl(node peer.Peer) {
	fmt.Println("commands: put <value>, get <hex-key>, join <addr>, peers, whoami, exit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("kademlia> ")
		if !scanner.Scan() {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "put":
			handlePut(node, fields)
		case "get":
			handleGet(node, fields)
		case "join":
			handleJoin(node, fields)
		case "peers":
			handlePeers(node)
		case "whoami":
			fmt.Println(node.OwnID())
		case "exit", "quit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func handlePut(node peer.Peer, fields []string) {
	if len(fields) < 2 {
		fmt.Println("usage: put <value>")
		return
	}
	value := strings.Join(fields[1:], " ")
	key := types.IdentifierFromString(value)
	node.Store(key, []byte(value))
	fmt.Printf("stored under key %s\n", key)
}

func handleGet(node peer.Peer, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: get <hex-key>")
		return
	}
	key, ok := types.IdentifierFromHex(fields[1])
	if !ok {
		fmt.Println("malformed key")
		return
	}
	value, found := node.Lookup(key)
	if !found {
		fmt.Println("not found")
		return
	}
	fmt.Printf("%s\n", value)
}

func handleJoin(node peer.Peer, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: join <addr>")
		return
	}
	addr := fields[1]
	node.JoinNetwork(types.Node{ID: types.IdentifierFromString(addr), Addr: addr})
}

func handlePeers(node peer.Peer) {
	id := node.OwnID()
	for i, n := range node.ClosestKnown(id, peer.K) {
		fmt.Printf("%d: %s %s\n", i, n.ID, n.Addr)
	}
}
