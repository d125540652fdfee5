// Command gofast-cli is an interactive REPL for the gofast-kv protocol:
// get/set/del/lst plus a pipeline meta-command for batching requests.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/width"

	"gofast-kv/internal/client"
	"gofast-kv/internal/wire"
)

var rootCmd = &cobra.Command{
	Use:   "gofast-cli <host:port>",
	Short: "interactive client for gofast-kv",
	Args:  cobra.ExactArgs(1),
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	addr := args[0]
	conn, err := client.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	fmt.Println("connected to", addr)
	fmt.Println("commands: get <key> | set <key> <value> | del <key> | lst | pipeline <cmd>;<cmd>;... | exit")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch strings.ToLower(fields[0]) {
		case "exit", "quit":
			return nil
		case "get":
			if len(fields) != 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			value, ok, err := conn.Get(fields[1])
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if !ok {
				fmt.Println("(nil)")
				continue
			}
			fmt.Println(value)
		case "set":
			if len(fields) != 3 {
				fmt.Println("usage: set <key> <value>")
				continue
			}
			if err := conn.Set(fields[1], fields[2]); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("OK")
		case "del":
			if len(fields) != 2 {
				fmt.Println("usage: del <key>")
				continue
			}
			if err := conn.Delete(fields[1]); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("OK")
		case "lst":
			pairs, err := conn.List()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			printTable(pairs)
		case "pipeline":
			if len(fields) < 2 {
				fmt.Println("usage: pipeline <cmd>;<cmd>;...")
				continue
			}
			runPipeline(conn, strings.Join(fields[1:], " "))
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
	return nil
}

// printTable renders List's pairs with column widths measured in East
// Asian display width, so keys/values containing wide characters still
// line up rather than just counting runes.
func printTable(pairs []wire.KV) {
	if len(pairs) == 0 {
		fmt.Println("(empty)")
		return
	}
	keyWidth := 0
	for _, p := range pairs {
		if w := displayWidth(string(p.Key)); w > keyWidth {
			keyWidth = w
		}
	}
	for _, p := range pairs {
		pad := keyWidth - displayWidth(string(p.Key))
		if pad < 0 {
			pad = 0
		}
		fmt.Printf("%s%s  %s\n", p.Key, strings.Repeat(" ", pad), p.Value)
	}
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		if width.LookupRune(r).Kind() == width.EastAsianWide || width.LookupRune(r).Kind() == width.EastAsianFullwidth {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// runPipeline splits a ";"-separated batch of get/set/del commands, sends
// them all before reading any response, and prints results in order.
func runPipeline(conn *client.Conn, batch string) {
	parts := strings.Split(batch, ";")
	var reqs []wire.Request
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, " ", 3)
		switch strings.ToLower(fields[0]) {
		case "get":
			if len(fields) != 2 {
				fmt.Println("skipping malformed get:", part)
				continue
			}
			reqs = append(reqs, wire.Request{Command: wire.CmdGet, Key: []byte(fields[1])})
		case "set":
			if len(fields) != 3 {
				fmt.Println("skipping malformed set:", part)
				continue
			}
			reqs = append(reqs, wire.Request{Command: wire.CmdSet, Key: []byte(fields[1]), Value: []byte(fields[2])})
		case "del":
			if len(fields) != 2 {
				fmt.Println("skipping malformed del:", part)
				continue
			}
			reqs = append(reqs, wire.Request{Command: wire.CmdDelete, Key: []byte(fields[1])})
		default:
			fmt.Println("skipping unrecognized pipeline command:", part)
		}
	}
	if len(reqs) == 0 {
		return
	}
	resps, err := conn.Pipeline(reqs)
	if err != nil {
		fmt.Println("pipeline error:", err)
		return
	}
	for i, resp := range resps {
		switch resp.Command {
		case wire.CmdGet:
			if resp.HasValue {
				fmt.Printf("[%d] %s\n", i, resp.Value)
			} else {
				fmt.Printf("[%d] (nil)\n", i)
			}
		default:
			fmt.Printf("[%d] OK\n", i)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
