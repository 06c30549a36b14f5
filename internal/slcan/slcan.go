// Package slcan delivers frames from a serial-line CAN adapter speaking
// the LAWICEL ASCII protocol (the Linux slcan line discipline speaks the
// same dialect). Each received line carries one frame; status and command
// echo lines are skipped.
package slcan

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/canwatch/internal/canbus"
	"github.com/banshee-data/canwatch/internal/monitoring"
)

// DefaultBaudRate suits the common USB slcan adapters.
const DefaultBaudRate = 115200

// errSkip marks lines that are valid protocol but not frames.
var errSkip = errors.New("not a frame line")

// Port reads frames from an slcan adapter. It implements canbus.Source.
type Port struct {
	rw     io.ReadWriteCloser
	br     *bufio.Reader
	device string

	closeOnce sync.Once
	closeErr  error
}

// Open opens the serial device at the given baud rate and opens the CAN
// channel on the adapter.
func Open(device string, baud int) (*Port, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	sp, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	p := New(sp, device)
	if err := p.openChannel(); err != nil {
		sp.Close()
		return nil, err
	}
	return p, nil
}

// New wraps an already-open stream. Tests feed canned adapter output
// through this.
func New(rw io.ReadWriteCloser, device string) *Port {
	return &Port{
		rw:     rw,
		br:     bufio.NewReader(rw),
		device: device,
	}
}

// openChannel closes any stale channel, then opens a fresh one.
func (p *Port) openChannel() error {
	for _, cmd := range []string{"C", "O"} {
		if _, err := p.rw.Write([]byte(cmd + "\r")); err != nil {
			return fmt.Errorf("slcan command %q on %s: %w", cmd, p.device, err)
		}
	}
	return nil
}

// Read blocks until the adapter delivers the next frame. Malformed frame
// lines are logged and skipped rather than ending the stream; io.EOF is
// returned once the adapter hangs up.
func (p *Port) Read(ctx context.Context) (canbus.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return canbus.Frame{}, err
		}

		line, err := p.br.ReadString('\r')
		atEOF := errors.Is(err, io.EOF)
		if err != nil && !atEOF {
			if ctx.Err() != nil {
				return canbus.Frame{}, ctx.Err()
			}
			return canbus.Frame{}, fmt.Errorf("read %s: %w", p.device, err)
		}

		line = strings.Trim(line, "\r\n\a")
		if line != "" {
			f, perr := ParseLine(line)
			switch {
			case perr == nil:
				return f, nil
			case errors.Is(perr, errSkip):
			default:
				monitoring.Logf("slcan %s: %v", p.device, perr)
			}
		}

		if atEOF {
			return canbus.Frame{}, io.EOF
		}
	}
}

// ParseLine decodes one adapter line. Frame lines are t/T (standard and
// extended data frames) and r/R (remote frames, which carry a length but
// no payload). Anything else is skipped as a status line.
func ParseLine(line string) (canbus.Frame, error) {
	if line == "" {
		return canbus.Frame{}, errSkip
	}

	var idDigits int
	var remote bool
	switch line[0] {
	case 't':
		idDigits = 3
	case 'T':
		idDigits = 8
	case 'r':
		idDigits, remote = 3, true
	case 'R':
		idDigits, remote = 8, true
	default:
		return canbus.Frame{}, errSkip
	}

	rest := line[1:]
	if len(rest) < idDigits+1 {
		return canbus.Frame{}, fmt.Errorf("truncated frame line %q", line)
	}

	idVal, err := strconv.ParseUint(rest[:idDigits], 16, 32)
	if err != nil {
		return canbus.Frame{}, fmt.Errorf("bad identifier in %q: %w", line, err)
	}

	length, err := strconv.Atoi(rest[idDigits : idDigits+1])
	if err != nil {
		return canbus.Frame{}, fmt.Errorf("bad payload length in %q: %w", line, err)
	}
	if length > canbus.MaxPayload {
		return canbus.Frame{}, fmt.Errorf("malformed frame %q: length %d", line, length)
	}

	var f canbus.Frame
	if idDigits == 3 {
		if idVal > canbus.MaskStandard {
			return canbus.Frame{}, fmt.Errorf("standard identifier %#x out of range in %q", idVal, line)
		}
		f.ID = canbus.StandardID(uint16(idVal))
	} else {
		if idVal > canbus.MaskExtended {
			return canbus.Frame{}, fmt.Errorf("extended identifier %#x out of range in %q", idVal, line)
		}
		f.ID = canbus.ExtendedID(uint32(idVal))
	}
	f.Length = uint8(length)

	if !remote {
		hexData := rest[idDigits+1:]
		if len(hexData) < 2*length {
			return canbus.Frame{}, fmt.Errorf("truncated payload in %q", line)
		}
		b, err := hex.DecodeString(hexData[:2*length])
		if err != nil {
			return canbus.Frame{}, fmt.Errorf("bad payload hex in %q: %w", line, err)
		}
		copy(f.Payload[:], b)
	}

	return f, nil
}

// Close closes the CAN channel on the adapter (best effort) and the
// underlying stream.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.rw.Write([]byte("C\r"))
		p.closeErr = p.rw.Close()
	})
	return p.closeErr
}

// String identifies the port for diagnostics.
func (p *Port) String() string {
	return "slcan:" + p.device
}
