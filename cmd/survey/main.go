// Command survey is the Surveyor/Respondent counterpart of the
// teacher's own worked examples: a server broadcasts a DATE survey and
// collects votes until its deadline elapses, while any number of named
// clients each answer with their own name. Grounded directly on
// examples/survey.rs.
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

const dateSurvey = "DATE"

func main() {
	configPath := flag.String("config", "", "optional YAML file of default timeouts")
	flag.Parse()
	args := flag.Args()

	if len(args) < 2 {
		usage()
	}

	var defaults runtimeconfig.Defaults
	if *configPath != "" {
		d, err := runtimeconfig.LoadYAML(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "survey: %v\n", err)
			os.Exit(1)
		}
		defaults = d
	}

	session := facade.NewSession(dialerFactory(), facade.RegisterBuiltins)
	defer session.Close()

	switch args[0] {
	case "server":
		if len(args) != 2 {
			usage()
		}
		server(session, args[1], defaults)
	case "client":
		if len(args) != 3 {
			usage()
		}
		client(session, args[1], args[2], defaults)
	default:
		usage()
	}
}

func dialerFactory() core.DialerFactory {
	return func(id core.SocketId, bus *core.Bus) core.Dialer {
		return tcp.New(id, bus)
	}
}

func server(session *facade.Session, url string, defaults runtimeconfig.Defaults) {
	sock, err := session.NewSocket(core.Surveyor)
	must(err)
	for _, opt := range defaults.Options() {
		must(sock.SetOption(opt))
	}

	fmt.Println("SERVER: SENDING DATE SURVEY REQUEST")
	_, err = sock.Bind(url)
	must(err)
	time.Sleep(time.Second)

	must(sock.Send([]byte(dateSurvey)))

	for {
		vote, err := sock.Recv()
		if err != nil {
			if ce, ok := err.(*core.Error); ok && ce.Kind == core.TimedOut {
				return
			}
			must(err)
		}
		fmt.Printf("SERVER: RECEIVED %q SURVEY RESPONSE\n", vote)
	}
}

func client(session *facade.Session, url, name string, defaults runtimeconfig.Defaults) {
	sock, err := session.NewSocket(core.Respondent)
	must(err)
	for _, opt := range defaults.Options() {
		must(sock.SetOption(opt))
	}

	_, err = sock.Connect(url)
	must(err)

	for {
		survey, err := sock.Recv()
		must(err)
		fmt.Printf("CLIENT (%s): RECEIVED %q SURVEY REQUEST\n", name, survey)
		fmt.Printf("CLIENT (%s): SENDING DATE SURVEY RESPONSE\n", name)
		must(sock.Send([]byte(name)))
	}
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "survey: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s server <URL> | client <URL> <NAME>\n", os.Args[0])
	os.Exit(1)
}
