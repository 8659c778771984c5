// ABOUTME: Key bindings and escape sequence decoding for the command loop
// ABOUTME: Maps single bytes and ANSI arrow sequences to playback commands
package command

import (
	"fmt"

	"github.com/Resonate-Protocol/aptest/internal/player"
)

// Kind identifies a user command
type Kind int

const (
	KindPlay Kind = iota + 1
	KindNoMorePresets
	KindQuit
	KindTogglePause
	KindStatus
	KindStart
	KindStop
	KindReset
	KindSeek
	KindMetadata
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindNoMorePresets:
		return "no-more-presets"
	case KindQuit:
		return "quit"
	case KindTogglePause:
		return "toggle-pause"
	case KindStatus:
		return "status"
	case KindStart:
		return "start"
	case KindStop:
		return "stop"
	case KindReset:
		return "reset"
	case KindSeek:
		return "seek"
	case KindMetadata:
		return "metadata"
	case KindHelp:
		return "help"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Command is one decoded key press
type Command struct {
	Kind   Kind
	Preset int                // 1-9 for KindPlay
	Seek   player.SeekRequest // For KindSeek
	Arrow  bool               // Seek came from an arrow key
	Byte   byte               // Offending byte for KindHelp
}

const escape = 0x1b

// Arrow key seek offsets in seconds
const (
	seekLong  = 60
	seekShort = 10
)

func keyCommand(b byte) Command {
	if b >= '1' && b <= '9' {
		return Command{Kind: KindPlay, Preset: int(b - '0')}
	}

	switch b {
	case '0':
		return Command{Kind: KindNoMorePresets}
	case 'q':
		return Command{Kind: KindQuit}
	case ' ':
		return Command{Kind: KindTogglePause}
	case 'p':
		return Command{Kind: KindStatus}
	case 's':
		return Command{Kind: KindStart}
	case 'd':
		return Command{Kind: KindStop}
	case 'r':
		return Command{Kind: KindReset}
	case 'z':
		return Command{Kind: KindSeek, Seek: player.SeekRequest{Amount: 0}}
	case 'o':
		return Command{Kind: KindSeek, Seek: player.SeekRequest{Amount: 60}}
	case 'm':
		return Command{Kind: KindMetadata}
	default:
		return Command{Kind: KindHelp, Byte: b}
	}
}

func arrowCommand(b byte) (Command, bool) {
	var amount float64
	switch b {
	case 'A':
		amount = seekLong
	case 'B':
		amount = -seekLong
	case 'C':
		amount = seekShort
	case 'D':
		amount = -seekShort
	default:
		return Command{}, false
	}
	return Command{
		Kind:  KindSeek,
		Seek:  player.SeekRequest{Amount: amount, Relative: true},
		Arrow: true,
	}, true
}

type decoderState int

const (
	stateIdle decoderState = iota
	stateSawEscape
	stateSawBracket
)

// Decoder turns input bytes into commands, one byte at a time.
// ESC [ A..D are arrows; ESC followed by anything else drops the ESC and
// decodes that byte normally. Any other control sequence, including arrows
// carrying modifier parameters, is consumed up to its final byte and discarded.
type Decoder struct {
	state  decoderState
	params bool
}

// Feed consumes b and returns a command once one is complete
func (d *Decoder) Feed(b byte) (Command, bool) {
	switch d.state {
	case stateSawEscape:
		if b == '[' {
			d.state = stateSawBracket
			d.params = false
			return Command{}, false
		}
		d.state = stateIdle
		return d.Feed(b)

	case stateSawBracket:
		switch {
		case b >= 0x20 && b <= 0x3f:
			// Parameter and intermediate bytes
			d.params = true
			return Command{}, false
		case b >= 0x40 && b <= 0x7e:
			d.state = stateIdle
			if d.params {
				return Command{}, false
			}
			return arrowCommand(b)
		case b == escape:
			d.state = stateSawEscape
			return Command{}, false
		default:
			d.state = stateIdle
			return Command{}, false
		}

	default:
		if b == escape {
			d.state = stateSawEscape
			return Command{}, false
		}
		return keyCommand(b), true
	}
}

// Pending reports whether a partial escape sequence has been consumed
func (d *Decoder) Pending() bool {
	return d.state != stateIdle
}

// Reset abandons any partial escape sequence
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.params = false
}
