package main

import (
	"fitpulse-chat/domain/event"
	"fmt"
	"io"

	"github.com/gookit/color"
)

type printer struct {
	w       io.Writer
	colours bool
}

func newPrinter(w io.Writer, colours bool) printer {
	return printer{w: w, colours: colours}
}

func (p printer) header(title string) {
	line := fmt.Sprintf("  ====== %s ======", title)
	if p.colours {
		line = color.New(color.BgBlack, color.FgGreen).Render(line)
	}
	fmt.Fprintln(p.w, line)
}

func (p printer) status(ok bool, text string) {
	if p.colours {
		if ok {
			text = color.FgGreen.Render(text)
		} else {
			text = color.FgRed.Render(text)
		}
	}
	fmt.Fprintln(p.w, text)
}

// frame prints one server event, colored by kind.
func (p printer) frame(t event.Type, data []byte) {
	label := fmt.Sprintf("[%s]", t)
	if p.colours {
		label = frameStyle(t).Render(label)
	}
	fmt.Fprintf(p.w, "%s %s\n", label, data)
}

func frameStyle(t event.Type) color.Color {
	switch t {
	case event.ErrorType:
		return color.FgRed
	case event.ReceiveMessageType, event.MessageSentType:
		return color.FgCyan
	case event.UserOnlineType, event.UserOfflineType:
		return color.FgYellow
	default:
		return color.FgGray
	}
}
