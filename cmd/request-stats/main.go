// Command request-stats summarises the request events the server logs with
// LOG_FORMAT=json. It reads log lines from files or stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

func main() {
	asJSON := flag.Bool("json", false, "print the full summary as JSON")
	flag.Parse()

	c := newCollector()
	inputs := flag.Args()
	if len(inputs) == 0 {
		if err := scan(c, os.Stdin); err != nil {
			log.Fatalf("read stdin: %v", err)
		}
	}
	for _, path := range inputs {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("open %s: %v", path, err)
		}
		err = scan(c, f)
		f.Close()
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
	}

	s := c.summary()
	if *asJSON {
		out, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
		if err != nil {
			log.Fatalf("encode summary: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	fmt.Printf("events=%d info=%d warn=%d error=%d skipped=%d\n",
		s.TotalEvents, s.SeverityCounts["INFO"], s.SeverityCounts["WARN"], s.SeverityCounts["ERROR"], s.SkippedLines)
	for _, key := range s.slowest() {
		r := s.Routes[key]
		fmt.Printf("%-28s count=%d avg_ms=%.2f max_ms=%.2f\n", key, r.Count, r.AvgMs, r.MaxMs)
	}
}

func scan(c *collector, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		c.ingest(sc.Text())
	}
	return sc.Err()
}
