// Command logstream opens a ROS1 bag or MCAP file (local path or URL),
// prints its topic table, and streams every message event to stdout in
// receive-time order. It exists to exercise the engine end-to-end; a real
// front-end would drive internal/worker and internal/cursor directly
// instead of shelling out to a process per source.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gaby/logstream/internal/engineconfig"
	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
	"github.com/gaby/logstream/internal/source"
	"github.com/gaby/logstream/internal/sourcefactory"
)

func main() {
	var (
		cfgPath string
		input   string
		format  string
		topics  string
	)
	flag.StringVar(&cfgPath, "config", "", "path to config file (json)")
	flag.StringVar(&input, "input", "", "path or URL to a .bag or .mcap log")
	flag.StringVar(&format, "format", "", "force auto|mcap|bag (overrides config.json)")
	flag.StringVar(&topics, "topics", "", "comma-separated topic filter (default: all)")
	flag.Parse()

	if input == "" {
		log.Fatalf("logstream: -input is required")
	}

	cfg, err := engineconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if format != "" {
		cfg.Format = format
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validate: %v", err)
	}

	fmtKind, err := sourcefactory.MustFormat(cfg.Format)
	if err != nil {
		log.Fatalf("format: %v", err)
	}

	in, err := resolveInput(input)
	if err != nil {
		log.Fatalf("input: %v", err)
	}

	w := sourcefactory.New(in, fmtKind)
	defer func() {
		if err := w.Terminate(); err != nil {
			log.Printf("terminate: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	init, err := w.Initialize(ctx)
	if err != nil {
		log.Fatalf("initialize: %v", err)
	}

	log.Printf("logstream: profile=%q start=%s end=%s topics=%d", init.Profile, init.Start, init.End, len(init.Topics))
	for _, t := range init.Topics {
		fmt.Printf("%-40s %s\n", t.Name, t.SchemaName)
	}

	var wanted []string
	if topics != "" {
		wanted = strings.Split(topics, ",")
	} else {
		for _, t := range init.Topics {
			wanted = append(wanted, t.Name)
		}
	}

	cur, err := w.GetMessageCursor(ctx, msgiter.MessageIteratorArgs{Topics: wanted})
	if err != nil {
		log.Fatalf("get message cursor: %v", err)
	}
	defer func() { _ = cur.End() }()

	batchWindow := time.Duration(cfg.BatchWindowMillis) * time.Millisecond
	window := logmsg.Time{Sec: int64(batchWindow / time.Second), Nsec: uint32(batchWindow % time.Second)}
	for {
		batch, err := cur.NextBatch(window)
		if err != nil {
			log.Fatalf("next batch: %v", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, item := range batch {
			switch item.Kind {
			case logmsg.ResultProblem:
				log.Printf("problem conn=%d: %s", item.Problem.ConnectionID, item.Problem.Message)
			default:
				fmt.Printf("%s %-30s %s\n", item.Message.ReceiveTime, item.Message.Topic, humanize.Bytes(uint64(item.Message.SizeInBytes)))
			}
		}
	}
}

func resolveInput(raw string) (source.Input, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return source.Input{Kind: source.InputURL, URL: raw}, nil
	}
	f, err := os.Open(raw)
	if err != nil {
		return source.Input{}, err
	}
	info, err := f.Stat()
	if err != nil {
		return source.Input{}, err
	}
	return source.Input{Kind: source.InputFile, File: &osFileBlob{f: f, size: info.Size()}}, nil
}

type osFileBlob struct {
	f    *os.File
	size int64
}

func (b *osFileBlob) ReadAt(p []byte, off int64) (int, error) { return b.f.ReadAt(p, off) }
func (b *osFileBlob) Size() int64                             { return b.size }
