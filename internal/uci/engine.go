package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const handshakeTimeout = 4 * time.Second

var ErrEngineClosed = errors.New("engine closed")

// Options are applied once when a process starts.
type Options struct {
	Threads int
	HashMB  int
}

func (o Options) normalized() Options {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.HashMB <= 0 {
		o.HashMB = 64
	}
	return o
}

// Limits bound a single search. At least one must be set.
type Limits struct {
	Depth      int
	MoveTimeMs int
	Nodes      int
}

func (l Limits) goCommand() (string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMs > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMs))
	}
	if l.Nodes > 0 {
		args = append(args, "nodes", strconv.Itoa(l.Nodes))
	}
	if len(args) == 1 {
		return "", errors.New("no search limits specified")
	}
	return strings.Join(args, " "), nil
}

// budget is how long a search may run before the engine is considered hung.
func (l Limits) budget() time.Duration {
	if l.MoveTimeMs > 0 {
		return time.Duration(l.MoveTimeMs)*time.Millisecond*3 + 6*time.Second
	}
	d := time.Duration(l.Depth) * 300 * time.Millisecond
	return min(max(d, 6*time.Second), 20*time.Second)
}

// Result is the principal line of the deepest info seen before bestmove.
// Scores are from the side to move.
type Result struct {
	BestMove string
	CP       int
	Mate     int
	Depth    int
	PV       []string
}

// Engine is one UCI process. Searches on the same Engine are serialized.
type Engine struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string
	done  chan struct{}
	quit  chan struct{}

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// Start launches binary and completes the uci/isready handshake.
func Start(ctx context.Context, binary string, opt Options) (*Engine, error) {
	cmd := exec.Command(binary)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	e := &Engine{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
		quit:  make(chan struct{}),
	}
	go e.pump(stdout)

	if err := e.handshake(ctx, opt.normalized()); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) pump(r io.Reader) {
	defer close(e.done)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case e.lines <- line:
		default:
			// Shed info lines when full; bestmove and readyok must arrive.
			if strings.HasPrefix(line, "info ") {
				continue
			}
			select {
			case e.lines <- line:
			case <-e.quit:
				return
			}
		}
	}
}

func (e *Engine) handshake(ctx context.Context, opt Options) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := e.send("uci"); err != nil {
		return err
	}
	if _, err := e.await(ctx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	for _, cmd := range []string{
		fmt.Sprintf("setoption name Threads value %d", opt.Threads),
		fmt.Sprintf("setoption name Hash value %d", opt.HashMB),
		"setoption name MultiPV value 1",
	} {
		if err := e.send(cmd); err != nil {
			return err
		}
	}
	return e.Ready(ctx)
}

// Ready round-trips isready.
func (e *Engine) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := e.send("isready"); err != nil {
		return err
	}
	if _, err := e.await(ctx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// Evaluate searches fen within limits. On context expiry the search is
// stopped before returning.
func (e *Engine) Evaluate(ctx context.Context, fen string, limits Limits) (Result, error) {
	goCmd, err := limits.goCommand()
	if err != nil {
		return Result{}, err
	}
	if err := e.send(positionCommand(fen)); err != nil {
		return Result{}, err
	}
	if err := e.send(goCmd); err != nil {
		return Result{}, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, limits.budget())
	defer cancel()

	var res Result
	for {
		line, err := e.next(searchCtx)
		if err != nil {
			if errors.Is(err, ErrEngineClosed) {
				return Result{}, err
			}
			if stopErr := e.stop(); stopErr != nil {
				return Result{}, errors.Join(err, stopErr)
			}
			return Result{}, err
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if info, ok := parseInfo(line); ok && info.Depth >= res.Depth {
				res.CP, res.Mate, res.Depth, res.PV = info.CP, info.Mate, info.Depth, info.PV
			}
		case strings.HasPrefix(line, "bestmove"):
			fields := strings.Fields(line)
			if len(fields) >= 2 && fields[1] != "(none)" {
				res.BestMove = fields[1]
			}
			if res.BestMove == "" && len(res.PV) > 0 {
				res.BestMove = res.PV[0]
			}
			return res, nil
		}
	}
}

// stop aborts a running search and waits briefly for its bestmove.
func (e *Engine) stop() error {
	if err := e.send("stop"); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	_, err := e.await(ctx, "bestmove")
	return err
}

func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.closeErr
	}
	e.closed = true
	close(e.quit)
	_, _ = io.WriteString(e.stdin, "quit\n")
	_ = e.stdin.Close()
	e.mu.Unlock()

	waitErr := make(chan error, 1)
	go func() { waitErr <- e.cmd.Wait() }()
	var err error
	select {
	case err = <-waitErr:
	case <-time.After(time.Second):
		_ = e.cmd.Process.Kill()
		err = <-waitErr
	}
	e.mu.Lock()
	e.closeErr = err
	e.mu.Unlock()
	return err
}

func (e *Engine) send(line string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if _, err := io.WriteString(e.stdin, line+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", firstWord(line), err)
	}
	return nil
}

func (e *Engine) next(ctx context.Context) (string, error) {
	select {
	case line := <-e.lines:
		return line, nil
	case <-e.done:
		select {
		case line := <-e.lines:
			return line, nil
		default:
			return "", ErrEngineClosed
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Engine) await(ctx context.Context, prefix string) (string, error) {
	for {
		line, err := e.next(ctx)
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(line, prefix) {
			return line, nil
		}
	}
}

func positionCommand(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return "position startpos"
	}
	return "position fen " + fen
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}
