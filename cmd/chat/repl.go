package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lukasbauer/sahayak/internal/assistant"
)

// stopWords end the conversation when they appear anywhere in a line.
var stopWords = []string{"रोकें", "बंद करें"}

const banner = "सरकारी योजना सहायक (Hindi Gov Scheme Assistant)"

type repl struct {
	svc *assistant.Service
	id  string
	in  io.Reader
	out io.Writer
}

func (r *repl) run(ctx context.Context) error {
	state, err := r.svc.Start(ctx, r.id)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, banner)
	if n := len(state.Messages); n > 0 {
		fmt.Fprintf(r.out, "सहायक: %s\n", state.Messages[n-1].Text)
	}

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if isStop(line) {
			return nil
		}

		reply, err := r.svc.Advance(ctx, r.id, line)
		if err != nil && reply.Text == "" {
			return err
		}
		printReply(r.out, reply)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func isStop(line string) bool {
	for _, w := range stopWords {
		if strings.Contains(line, w) {
			return true
		}
	}
	return false
}

func printReply(out io.Writer, reply assistant.Reply) {
	fmt.Fprintf(out, "सहायक: %s\n", reply.Text)
	if len(reply.EligibleSchemes) > 0 {
		names := make([]string, len(reply.EligibleSchemes))
		for i, s := range reply.EligibleSchemes {
			names[i] = s.Name
		}
		fmt.Fprintf(out, "पात्र योजनाएं: %s\n", strings.Join(names, ", "))
	}
}
