// Command reqrep is the Req/Rep counterpart of the teacher's own
// worked examples: one node binds a Rep socket and answers a DATE
// request, the other connects a Req socket and asks it once. Grounded
// directly on examples/reqrep.rs.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/facade"
	"github.com/npio/scaleproto/internal/runtimeconfig"
	"github.com/npio/scaleproto/transport/tcp"
)

const dateRequest = "DATE"

func main() {
	if len(os.Args) < 3 {
		usage()
	}

	configPath := flag.String("config", "", "optional YAML file of default timeouts")
	flag.CommandLine.Parse(os.Args[2:])

	role := os.Args[1]
	args := flag.Args()
	if len(args) != 1 {
		usage()
	}
	url := args[0]

	var defaults runtimeconfig.Defaults
	if *configPath != "" {
		d, err := runtimeconfig.LoadYAML(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reqrep: %v\n", err)
			os.Exit(1)
		}
		defaults = d
	}

	session := facade.NewSession(dialerFactory(), facade.RegisterBuiltins)
	defer session.Close()

	switch role {
	case "node0":
		node0(session, url, defaults)
	case "node1":
		node1(session, url, defaults)
	default:
		usage()
	}
}

func dialerFactory() core.DialerFactory {
	return func(id core.SocketId, bus *core.Bus) core.Dialer {
		return tcp.New(id, bus)
	}
}

func node0(session *facade.Session, url string, defaults runtimeconfig.Defaults) {
	sock, err := session.NewSocket(core.Rep)
	must(err)
	for _, opt := range defaults.Options() {
		must(sock.SetOption(opt))
	}
	_, err = sock.Bind(url)
	must(err)

	for {
		body, err := sock.Recv()
		must(err)
		if string(body) == dateRequest {
			fmt.Println("NODE0: RECEIVED DATE REQUEST")
			reply := time.Now().UTC().Format(time.RFC3339)
			fmt.Printf("NODE0: SENDING DATE %q\n", reply)
			must(sock.Send([]byte(reply)))
		} else {
			fmt.Printf("NODE0: RECEIVED UNEXPECTED REQUEST: %s\n", body)
		}
	}
}

func node1(session *facade.Session, url string, defaults runtimeconfig.Defaults) {
	sock, err := session.NewSocket(core.Req)
	must(err)
	for _, opt := range defaults.Options() {
		must(sock.SetOption(opt))
	}
	_, err = sock.Connect(url)
	must(err)

	fmt.Printf("NODE1: SENDING DATE REQUEST %s\n", dateRequest)
	must(sock.Send([]byte(dateRequest)))

	reply, err := sock.Recv()
	must(err)
	fmt.Printf("NODE1: RECEIVED DATE %s\n", reply)

	time.Sleep(50 * time.Millisecond)
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "reqrep: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s node0|node1 [-config FILE] <URL>\n", os.Args[0])
	os.Exit(1)
}
