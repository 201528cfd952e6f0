// Command theaterctl is a small client for manually sending a message into
// a running cluster and inspecting a node's debug registry, grounded on
// Alertmanager's kingpin-based CLI entrypoint style (cmd/alertmanager/main.go's
// flag layout) rewritten fresh against alecthomas/kingpin/v2; its own cli/
// package drives the alert silencing API, not an actor send, so it wasn't
// adapted here.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"

	"github.com/squaregear/theater/actor"
	"github.com/squaregear/theater/launcher"
	"github.com/squaregear/theater/router"
)

var (
	app = kingpin.New("theaterctl", "Send a message into a theater cluster or inspect a node.")

	knownPeers = app.Flag("peer", "Cluster peer address to contact (host:port), repeatable.").Strings()
	bindAddr   = app.Flag("bind-addr", "Local gossip bind address for this client.").Default("0.0.0.0:0").String()

	sendCmd     = app.Command("send", "Send a message to an actor.")
	sendType    = sendCmd.Arg("type", "Actor type.").Required().String()
	sendID      = sendCmd.Arg("id", "Actor id.").Required().String()
	sendPayload = sendCmd.Arg("payload", "Raw message payload.").Required().String()

	registryCmd    = registryCommand(app)
	registryTarget = registryCmd.Arg("url", "Base URL of a node's debug endpoint, e.g. http://host:9190.").Required().String()
)

func registryCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("registry", "Fetch a node's /debug/registry.")
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch cmd {
	case sendCmd.FullCommand():
		addr := actor.Address{Type: *sendType, ID: *sendID}
		if err := send(*knownPeers, *bindAddr, addr, *sendPayload); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case registryCmd.FullCommand():
		if err := runRegistry(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
}

func runRegistry() error {
	resp, err := http.Get(*registryTarget + "/debug/registry")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

func send(peers []string, bind string, addr actor.Address, payload string) error {
	reg := actor.NewRegistry()
	lch := launcher.New(reg, nil, nil, 0, nil, nil, nil)

	rtr, err := router.Join(router.Config{
		BindAddr:   bind,
		KnownPeers: peers,
		ClientOnly: true,
	}, lch, nil, nil)
	if err != nil {
		return fmt.Errorf("join cluster: %w", err)
	}
	defer rtr.Leave(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return rtr.Send(ctx, addr, payload, uuid.NewString())
}
