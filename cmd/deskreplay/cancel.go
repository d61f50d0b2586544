package main

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// watchCancelKey calls stop once a line reading "q", "quit" or Esc arrives
// on r. It returns when that happens or ctx ends.
func watchCancelKey(ctx context.Context, r io.Reader, stop func()) error {
	pressed := make(chan struct{}, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if isCancelKey(sc.Text()) {
				pressed <- struct{}{}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-pressed:
		stop()
	}
	return nil
}

func isCancelKey(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "quit", "\x1b", "esc":
		return true
	}
	return false
}
