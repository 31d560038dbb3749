// Command mgindb-cli is an interactive shell for an MginDB server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/loganszeto/mgindb-go/client"
	"github.com/loganszeto/mgindb-go/internal/config"
	"github.com/loganszeto/mgindb-go/internal/logger"
)

const prompt = "MginDB> "

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "mgindb-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("mgindb-cli", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	scheme := fs.String("scheme", "", "ws or wss")
	host := fs.StringP("host", "H", "", "server host")
	port := fs.IntP("port", "p", 0, "server port")
	user := fs.StringP("user", "u", "", "username")
	password := fs.String("password", "", "password (prompted for when a user is given without one)")
	timeout := fs.Duration("timeout", 0, "per-command timeout, 0 waits forever")
	verbose := fs.BoolP("verbose", "v", false, "trace logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mgindb-cli [options] [COMMAND args...]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		logger.EnableTrace()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if fs.Changed("scheme") {
		cfg.Scheme = *scheme
	}
	if fs.Changed("host") {
		cfg.Host = *host
	}
	if fs.Changed("port") {
		cfg.Port = *port
	}
	if fs.Changed("user") {
		cfg.Username = *user
	}
	if fs.Changed("password") {
		cfg.Password = *password
	}
	if fs.Changed("timeout") {
		cfg.Timeout.Duration = *timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Username != "" && cfg.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		cfg.Password = string(pass)
	}

	s := client.NewSession(cfg.Options())
	if _, err := s.Open(ctx); err != nil {
		return err
	}
	defer s.Close()
	logger.Trace("session %s open on %s", s.ID(), s.URL())
	c := client.New(s)

	sh := &shell{c: c, out: out, timeout: cfg.Timeout.Duration}
	if rest := fs.Args(); len(rest) > 0 {
		return sh.exec(ctx, strings.Join(rest, " "))
	}
	return sh.loop(ctx, in)
}

type shell struct {
	c       *client.Client
	out     io.Writer
	timeout time.Duration
}

func (sh *shell) loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(sh.out, "MginDB CLI. Add -f after a command for table output. Type 'exit' to quit, 'clear' to clear the screen.")
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for {
		fmt.Fprint(sh.out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(sh.out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "clear":
			fmt.Fprint(sh.out, "\033[H\033[2J")
			continue
		}
		if err := sh.exec(ctx, line); err != nil {
			var nre *client.NoReplyError
			if errors.As(err, &nre) || errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// exec sends one line and prints the reply. A "-f" token anywhere in the
// line selects table output.
func (sh *shell) exec(ctx context.Context, line string) error {
	line, table := stripTableFlag(line)
	if sh.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sh.timeout)
		defer cancel()
	}
	reply, err := sh.c.SendRaw(ctx, line)
	if err != nil {
		return err
	}
	render(sh.out, reply, table)
	return nil
}

func stripTableFlag(line string) (string, bool) {
	fields := strings.Fields(line)
	kept := fields[:0]
	table := false
	for _, f := range fields {
		if f == "-f" {
			table = true
			continue
		}
		kept = append(kept, f)
	}
	if !table {
		return line, false
	}
	return strings.Join(kept, " "), true
}
