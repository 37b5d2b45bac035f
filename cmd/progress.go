package main

import (
	"strings"
	"sync"

	"github.com/desertthunder/djwaifu/internal/tasks"
)

// progressPrinter drains engine updates to the runner's output.
//
// On a terminal each update rewrites the current line. Otherwise updates go to the logger so
// piped output stays clean.
type progressPrinter struct {
	r       *Runner
	updates chan tasks.ProgressUpdate
	live    bool
	width   int
	wg      sync.WaitGroup
}

func (r *Runner) startProgress() *progressPrinter {
	p := &progressPrinter{
		r:       r,
		updates: make(chan tasks.ProgressUpdate, 100),
		live:    r.interactive(),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Chan is passed to the engine.
func (p *progressPrinter) Chan() chan<- tasks.ProgressUpdate {
	return p.updates
}

func (p *progressPrinter) run() {
	defer p.wg.Done()
	for u := range p.updates {
		if u.Message == "" {
			continue
		}
		if !p.live {
			p.r.logger.Info(u.Message, "phase", u.Phase)
			continue
		}

		pad := ""
		if n := p.width - len(u.Message); n > 0 {
			pad = strings.Repeat(" ", n)
		}
		p.r.writePlain("\r%s%s", u.Message, pad)
		p.width = len(u.Message)
	}
	if p.live && p.width > 0 {
		p.r.writePlain("\n")
	}
}

// Stop closes the channel and waits for pending updates to print.
func (p *progressPrinter) Stop() {
	close(p.updates)
	p.wg.Wait()
}
