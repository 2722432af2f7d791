package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"golang.org/x/term"

	"ssc/bus"
	"ssc/engine"
	"ssc/live"
	"ssc/persist"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "-h", "--help", "help":
		usage()
		return
	case "repl":
		os.Exit(replCommand(os.Args[2:]))
	case "load":
		os.Exit(loadCommand(os.Args[2:]))
	case "serve":
		os.Exit(serveCommand(os.Args[2:]))
	case "bus":
		os.Exit(busCommand(os.Args[2:]))
	case "version":
		fmt.Println(cliVersion())
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  ssc <command> [arguments]\n")
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  repl                 read command lines from stdin, apply them, print results\n")
	fmt.Fprintf(os.Stderr, "  load <file>          apply a saved sheet's command lines and print the canonical re-emit\n")
	fmt.Fprintf(os.Stderr, "  serve [addr] [file]  serve a sheet over a push-only websocket (default :8080)\n")
	fmt.Fprintf(os.Stderr, "  bus <pub> <cmd> [file]  serve a sheet over ZeroMQ pub/command sockets\n")
	fmt.Fprintf(os.Stderr, "  version              print the build version\n")
}

// newLoadedEngine builds an engine and, if path is non-empty, applies every
// command line in the file at path before returning.
func newLoadedEngine(path string) (*engine.Engine, *persist.AbbrevTable, error) {
	e := engine.New()
	abbrev := persist.NewAbbrevTable()
	if path == "" {
		return e, abbrev, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := applyLines(e, abbrev, strings.NewReader(string(data))); err != nil {
		return nil, nil, err
	}
	return e, abbrev, nil
}

func applyLines(e *engine.Engine, abbrev *persist.AbbrevTable, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if err := persist.Apply(e, abbrev, scanner.Text()); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

// loadCommand applies a saved sheet's command file and prints its canonical
// re-emit, which exercises the same round-trip persist's own tests check.
func loadCommand(args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: ssc load <file>\n")
		return 2
	}
	e, abbrev, err := newLoadedEngine(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, line := range persist.Emit(e, abbrev) {
		fmt.Println(line)
	}
	return 0
}

// replCommand reads command lines from stdin one at a time, applies each to
// an in-memory sheet, and reports ok/error per line. It prompts only when
// stdin is a terminal; piped input produces no prompt noise.
func replCommand(args []string) int {
	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "repl takes no arguments\n")
		return 2
	}

	e := engine.New()
	abbrev := persist.NewAbbrevTable()
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if interactive {
			fmt.Fprint(os.Stdout, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == ":quit" {
			break
		}
		if err := persist.Apply(e, abbrev, line); err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Fprintln(os.Stdout, "ok")
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// normalizeAddr applies the same "localhost breaks IPv4/IPv6 binding,
// port-only needs a leading colon" cleanup the reference server commands
// always ran on their address argument.
func normalizeAddr(addr, fallback string) string {
	if addr == "" {
		return fallback
	}
	addr = strings.Replace(addr, "localhost", "", 1)
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	return addr
}

func serveCommand(args []string) int {
	addr := ""
	file := ""
	if len(args) > 0 {
		addr = args[0]
	}
	if len(args) > 1 {
		file = args[1]
	}
	if len(args) > 2 {
		fmt.Fprintf(os.Stderr, "Usage: ssc serve [addr] [file]\n")
		return 2
	}

	e, _, err := newLoadedEngine(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	hub := live.NewHub(e)
	mux := http.NewServeMux()
	hub.RegisterRoutes(mux)

	addr = normalizeAddr(addr, ":8080")
	fmt.Fprintf(os.Stderr, "serving sheet at ws://%s/ws\n", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func busCommand(args []string) int {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: ssc bus <pub-addr> <cmd-addr> [file]\n")
		return 2
	}
	pubAddr := args[0]
	cmdAddr := args[1]
	file := ""
	if len(args) > 2 {
		file = args[2]
	}

	e, abbrev, err := newLoadedEngine(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pub, err := bus.NewPublisher(ctx, pubAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pub.Close()

	srv, err := bus.NewCommandServer(ctx, cmdAddr, e, abbrev, func(changed []bus.CellChanged) {
		if err := pub.Broadcast(changed); err != nil {
			fmt.Fprintln(os.Stderr, "bus: broadcast failed:", err)
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer srv.Close()

	fmt.Fprintf(os.Stderr, "bus publishing at %s, accepting commands at %s\n", pubAddr, cmdAddr)
	go srv.Serve()
	<-ctx.Done()
	return 0
}

func cliVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	rev := buildInfoSetting(info, "vcs.revision")
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev == "" {
		return "dev"
	}
	if buildInfoSetting(info, "vcs.modified") == "true" {
		return "dev+" + rev + "-dirty"
	}
	return "dev+" + rev
}

func buildInfoSetting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
