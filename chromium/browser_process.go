/*
 *
 * pagebatch - batch browser automation
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package chromium

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/storage"
)

type browserProcess struct {
	// The process of the browser.
	process *os.Process

	// Closed once the process has exited and its data dir is removed.
	done chan struct{}

	// Browser's WebSocket URL to speak CDP
	wsURL string

	logger *log.Logger
}

func newBrowserProcess(
	ctx context.Context, path string, args, env []string, dataDir *storage.Dir,
	timeout time.Duration, logger *log.Logger,
) (*browserProcess, error) {
	cmd, err := execute(ctx, path, args, env, dataDir, logger)
	if err != nil {
		return nil, err
	}

	parseCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		parseCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	wsURL, err := parseDevToolsURL(parseCtx, cmd)
	if err != nil {
		_ = cmd.Process.Kill()
		<-cmd.done
		return nil, fmt.Errorf("getting DevTools URL: %w", err)
	}

	return &browserProcess{
		process: cmd.Process,
		done:    cmd.done,
		wsURL:   wsURL,
		logger:  logger,
	}, nil
}

// Pid returns the browser process ID.
func (p *browserProcess) Pid() int {
	return p.process.Pid
}

// WsURL returns the Websocket URL that the browser is listening on for CDP clients.
func (p *browserProcess) WsURL() string {
	return p.wsURL
}

// wait blocks until the process has exited. It kills the process when ctx
// is done first.
func (p *browserProcess) wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
	}

	p.logger.Debugf("Browser:wait", "killing pid %d: %v", p.Pid(), ctx.Err())
	if err := p.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing browser process %d: %w", p.Pid(), err)
	}
	<-p.done

	return nil
}

type command struct {
	*exec.Cmd
	done   chan struct{}
	stderr io.Reader
}

func execute(
	ctx context.Context, path string, args, env []string, dataDir *storage.Dir,
	logger *log.Logger,
) (command, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	killAfterParent(cmd)

	// Set up environment variable for process
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	// The copying goroutine of exec feeds the pipe until the process exits,
	// the pipe is closed after Wait to end the readers.
	stderr, stderrW := io.Pipe()
	cmd.Stderr = stderrW

	// We must start the cmd before calling cmd.Wait, as otherwise the two
	// can run into a data race.
	err := cmd.Start()
	if os.IsNotExist(err) {
		return command{}, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return command{}, fmt.Errorf("starting browser process: %w", err)
	}

	return watch(ctx, cmd, stderr, stderrW, dataDir, logger)
}

// watch reaps a started cmd in the background. If ctx ended while the process
// was starting, the process is killed and reaped before returning.
func watch(
	ctx context.Context, cmd *exec.Cmd, stderr *io.PipeReader, stderrW *io.PipeWriter,
	dataDir *storage.Dir, logger *log.Logger,
) (command, error) {
	done := make(chan struct{})
	go func() {
		defer func() {
			if err := dataDir.Cleanup(); err != nil {
				logger.Errorf("browser", "cleaning up the user data directory: %v", err)
			}
			close(done)
		}()

		err := cmd.Wait()
		_ = stderrW.Close()
		if err != nil && ctx.Err() == nil {
			logger.Debugf("browser",
				"process with PID %d ended: %v", cmd.Process.Pid, err)
		}
	}()

	if err := ctx.Err(); err != nil {
		_ = cmd.Process.Kill()
		// nobody reads stderr yet, unblock the copying goroutine of exec.
		_ = stderr.Close()
		<-done
		return command{}, fmt.Errorf("starting browser process: %w", err)
	}

	return command{Cmd: cmd, done: done, stderr: stderr}, nil
}

// parseDevToolsURL reads the DevTools WebSocket URL from the browser's
// stderr. Error lines logged before the browser gave up are reported as the
// failure reason. stderr keeps being drained after the URL is found.
func parseDevToolsURL(ctx context.Context, cmd command) (string, error) {
	type result struct {
		devToolsURL string
		err         error
	}
	parsed := make(chan result, 1)
	go func() {
		const prefix = "DevTools listening on "

		var (
			scanner = bufio.NewScanner(cmd.stderr)
			lastErr error
		)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if strings.HasPrefix(line, prefix) {
				parsed <- result{strings.TrimPrefix(line, prefix), nil}
				for scanner.Scan() {
				}
				return
			}
			if strings.Contains(line, ":ERROR:") {
				if i := strings.Index(line, "] "); i > 0 {
					lastErr = errors.New(line[i+2:])
				}
			}
		}
		err := lastErr
		if err == nil {
			err = scanner.Err()
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		parsed <- result{"", err}
	}()

	select {
	case r := <-parsed:
		return r.devToolsURL, r.err
	case <-cmd.done:
		select {
		case r := <-parsed:
			return r.devToolsURL, r.err
		default:
		}
		return "", errors.New("browser process ended unexpectedly")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
