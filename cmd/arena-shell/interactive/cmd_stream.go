package interactive

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zacpullen/arena-api/pkg/buffer"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/pixelformat"
)

const defaultGrabTimeout = time.Second

func (s *Shell) cmdStream(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: stream start [buffers] | stop | stats")
		return
	}
	d := s.device()
	if d == nil {
		return
	}
	switch args[0] {
	case "start":
		n := 0
		if len(args) > 1 {
			var err error
			if n, err = strconv.Atoi(args[1]); err != nil {
				fmt.Fprintln(s.out, "Usage: stream start [buffers]")
				return
			}
		}
		st, err := d.StartStream(n)
		if err != nil {
			s.printErr("Start failed", err)
			return
		}
		fmt.Fprintf(s.out, "Streaming with %d buffers (session %s)\n", st.BufferCount(), st.Session())
	case "stop":
		if err := d.StopStream(); err != nil {
			s.printErr("Stop failed", err)
			return
		}
		fmt.Fprintln(s.out, "Stream stopped")
	case "stats":
		st := d.StreamStats()
		fmt.Fprintf(s.out, "  State:      %s\n", st.State)
		fmt.Fprintf(s.out, "  Policy:     %s\n", st.Policy)
		fmt.Fprintf(s.out, "  Buffers:    %d (input %d, output %d, held %d)\n", st.Buffers, st.Input, st.Output, st.Held)
		fmt.Fprintf(s.out, "  Delivered:  %d\n", st.Delivered)
		fmt.Fprintf(s.out, "  Lost:       %d\n", st.Lost)
		fmt.Fprintf(s.out, "  Incomplete: %d\n", st.Incomplete)
	default:
		fmt.Fprintf(s.out, "Unknown stream command: %s\n", args[0])
	}
}

// grabArgs holds the parsed arguments of the grab command.
type grabArgs struct {
	count   int
	timeout time.Duration
	output  string
}

func parseGrabArgs(args []string) (grabArgs, error) {
	g := grabArgs{count: 1, timeout: defaultGrabTimeout}
	var pos []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" {
			if i+1 == len(args) {
				return g, errors.New("-o needs a file name")
			}
			g.output = args[i+1]
			i++
			continue
		}
		pos = append(pos, args[i])
	}
	if len(pos) > 2 {
		return g, errors.New("too many arguments")
	}
	if len(pos) > 0 {
		n, err := strconv.Atoi(pos[0])
		if err != nil || n < 1 {
			return g, fmt.Errorf("bad count %q", pos[0])
		}
		g.count = n
	}
	if len(pos) > 1 {
		ms, err := strconv.Atoi(pos[1])
		if err != nil || ms < 0 {
			return g, fmt.Errorf("bad timeout %q", pos[1])
		}
		g.timeout = time.Duration(ms) * time.Millisecond
	}
	return g, nil
}

// cmdGrab retrieves buffers from the running stream, optionally saving
// them as PGM images, and requeues them.
func (s *Shell) cmdGrab(args []string) {
	g, err := parseGrabArgs(args)
	if err != nil {
		fmt.Fprintf(s.out, "Usage: grab [count] [timeout-ms] [-o file.pgm]: %v\n", err)
		return
	}
	d := s.device()
	if d == nil {
		return
	}
	bufs, err := d.GetBuffers(g.count, g.timeout)
	if err != nil {
		s.printErr("Grab failed", err)
		return
	}
	defer func() {
		if err := d.RequeueBuffer(bufs...); err != nil {
			s.printErr("Requeue failed", err)
		}
	}()

	for i, b := range bufs {
		line := b.String()
		if ts, err := b.TimestampNs(); err == nil {
			line += fmt.Sprintf(" ts=%d", ts)
		}
		if b.IsIncomplete() {
			line += " incomplete"
		}
		if b.HasChunkData() {
			if ok, err := b.IsValidCRC(); err == nil {
				line += fmt.Sprintf(" crc=%t", ok)
			}
		}
		fmt.Fprintln(s.out, line)

		if g.output == "" || !b.HasImageData() {
			continue
		}
		path := g.output
		if len(bufs) > 1 {
			ext := filepath.Ext(path)
			path = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i, ext)
		}
		if err := s.writePGM(path, b); err != nil {
			s.printErr("Saving "+path, err)
			continue
		}
		fmt.Fprintf(s.out, "  saved %s\n", path)
	}
}

// writePGM writes b as an 8 bit binary PGM, converting the pixel format
// when needed.
func (s *Shell) writePGM(path string, b *buffer.Buffer) error {
	pf, err := b.PixelFormat()
	if err != nil {
		return err
	}
	img := b
	if pf != pixelformat.Mono8 {
		conv, err := s.factory.Convert(b, pixelformat.Mono8)
		if err != nil {
			return err
		}
		defer s.factory.Destroy(conv)
		img = conv
	}
	w, err := img.Width()
	if err != nil {
		return err
	}
	h, err := img.Height()
	if err != nil {
		return err
	}
	data, err := img.Data()
	if err != nil {
		return err
	}
	if int64(len(data)) < w*h {
		return errkind.New(errkind.ErrBufferTooSmall, "writePGM", "%d image bytes for %dx%d", len(data), w, h)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "P5\n%d %d\n255\n", w, h)
	bw.Write(data[:w*h])
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Shell) cmdEvents(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: events on | off | wait [timeout-ms]")
		return
	}
	d := s.device()
	if d == nil {
		return
	}
	switch args[0] {
	case "on":
		if err := d.InitializeEvents(); err != nil {
			s.printErr("Initializing events failed", err)
			return
		}
		fmt.Fprintln(s.out, "Events on (enable them with write EventNotification[<event>] On)")
	case "off":
		if err := d.DeinitializeEvents(); err != nil {
			s.printErr("Deinitializing events failed", err)
			return
		}
		fmt.Fprintln(s.out, "Events off")
	case "wait":
		timeout := defaultGrabTimeout
		if len(args) > 1 {
			ms, err := strconv.Atoi(args[1])
			if err != nil || ms < 0 {
				fmt.Fprintln(s.out, "Usage: events wait [timeout-ms]")
				return
			}
			timeout = time.Duration(ms) * time.Millisecond
		}
		if err := d.WaitOnEvent(timeout); err != nil {
			s.printErr("Wait failed", err)
			return
		}
		fmt.Fprintln(s.out, "Event applied")
	default:
		fmt.Fprintf(s.out, "Unknown events command: %s\n", args[0])
	}
}
