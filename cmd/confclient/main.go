// Command confclient is a minimal, scriptable driver for the conferencing
// wire protocol: it logs in, optionally creates or joins one session, and
// prints whatever the server pushes back. Building an interactive shell
// or REPL on top of this is explicitly out of scope.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/haldane-labs/confrelay/internal/chatclient"
	"github.com/haldane-labs/confrelay/internal/config"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7000", "conferencing server address")
	id := flag.String("id", "", "client ID to log in with")
	password := flag.String("password", "", "password for the client ID")
	session := flag.String("session", "", "session to join (created if -new is set)")
	newSession := flag.Bool("new", false, "create -session instead of joining it")
	flag.Parse()

	if *id == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "confclient: -id and -password are required")
		os.Exit(1)
	}

	cfg := config.DefaultClientConfig()

	c, err := chatclient.Dial(*addr, *id, *password, cfg.DialTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "confclient: login failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if *session != "" {
		if *newSession {
			err = c.NewSession(*session)
		} else {
			err = c.Join(*session)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "confclient: %v\n", err)
			os.Exit(1)
		}
	}

	go func() {
		for {
			f, err := c.Recv()
			if err != nil {
				return
			}
			fmt.Printf("[%s/%s] %s\n", f.Session, f.Source, f.Data)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if *session == "" {
			fmt.Fprintln(os.Stderr, "confclient: no session joined, ignoring input")
			continue
		}
		if err := c.Say(*session, scanner.Text()); err != nil {
			fmt.Fprintf(os.Stderr, "confclient: send failed: %v\n", err)
			return
		}
	}
}
