package cmd

import (
	"fmt"
	"io"
	"strings"
)

const progressWidth = 30

// progressBar redraws a single status line on w as product ids are fetched.
type progressBar struct {
	label string
	total int64
	done  int64
	w     io.Writer
}

func newProgressBar(total int64, label string, w io.Writer) *progressBar {
	return &progressBar{label: label, total: total, w: w}
}

// Advance records n more ids as fetched.
func (p *progressBar) Advance(n int64) {
	p.done = min(p.done+n, p.total)
	p.draw()
}

// Finish draws the final state and ends the line.
func (p *progressBar) Finish() {
	p.draw()
	fmt.Fprintln(p.w)
}

func (p *progressBar) draw() {
	if p.total <= 0 {
		return
	}
	filled := int(p.done * progressWidth / p.total)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressWidth-filled)
	fmt.Fprintf(p.w, "\r%s [%s] %3d%% %d/%d", p.label, bar, p.done*100/p.total, p.done, p.total)
}
