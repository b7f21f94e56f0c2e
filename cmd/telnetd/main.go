// Command telnetd runs a minimal Telnet server exercising the protocol
// engine in internal/telnet: it negotiates options, reports the
// negotiated terminal type and window size, and echoes each line the
// client sends until the client sends "quit" or the connection closes.
package main

import (
	"bufio"
	"flag"
	"fmt"

	"github.com/gliderlabs/ssh"

	"github.com/stlalpha/vision3-telnet/internal/logging"
	"github.com/stlalpha/vision3-telnet/internal/telnetserver"
)

func main() {
	port := flag.Int("port", 2323, "TCP port to listen on")
	host := flag.String("host", "0.0.0.0", "address to listen on")
	configPath := flag.String("config", "", "path to a telnet engine tunables file (YAML), hot-reloaded on edit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logging.DebugEnabled = *debug

	srv, err := telnetserver.NewServer(telnetserver.Config{
		Port:           *port,
		Host:           *host,
		ConfigPath:     *configPath,
		SessionHandler: handleSession,
	})
	if err != nil {
		logging.Error("starting telnet server: %v", err)
		return
	}

	logging.Info("telnetd listening on %s:%d", *host, *port)
	if err := srv.ListenAndServe(); err != nil {
		logging.Error("telnet server stopped: %v", err)
	}
}

func handleSession(sess *telnetserver.TelnetSessionAdapter) {
	pty, winCh, _ := sess.Pty()
	fmt.Fprintf(sess, "term=%s size=%dx%d\r\n", pty.Term, pty.Window.Width, pty.Window.Height)

	go func() {
		for win := range winCh {
			logging.Debug("session %s resized to %dx%d", sess.SessionID(), win.Width, win.Height)
		}
	}()

	scanner := bufio.NewScanner(sess)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "quit" {
			return
		}
		fmt.Fprintf(sess, "you said: %s\r\n", line)
	}
}

var _ ssh.Session = (*telnetserver.TelnetSessionAdapter)(nil)
