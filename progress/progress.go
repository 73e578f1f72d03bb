// Package progress reports throughput for long-running disk image builds
// (spec §4.5): packing a large host file tree into a volume can take long
// enough that a caller wants a rate/percentage readout, the same shape the
// teacher used for reporting HTTP upload throughput.
package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pcediskimg/diskimage/humanize"
)

var bytesPacked uint64

// Reset zeroes the packed-byte counter and returns its previous value,
// called once per cmd/diskimg build invocation so counters from an earlier
// build in the same process don't bleed into the next one.
func Reset() uint64 {
	return atomic.SwapUint64(&bytesPacked, 0)
}

// Writer counts bytes written through it; wrap the destination a build's
// file-copy loop writes into so Reporter has something to rate.
type Writer struct{}

func (w Writer) Write(p []byte) (n int, err error) {
	atomic.AddUint64(&bytesPacked, uint64(len(p)))
	return len(p), nil
}

// Reporter prints a ticking status line for a build in progress.
type Reporter struct {
	total uint64

	mu     sync.Mutex
	status string
}

// SetStatus changes the short label shown alongside the rate (e.g. the
// file currently being packed).
func (p *Reporter) SetStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// SetTotal records the expected total byte count, once known, so Report
// can show a percentage rather than a bare rate.
func (p *Reporter) SetTotal(total uint64) {
	atomic.StoreUint64(&p.total, total)
}

func (p *Reporter) getStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Report prints a status line once per second until ctx is done.
func (p *Reporter) Report(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	last := atomic.LoadUint64(&bytesPacked)
	for {
		select {
		case <-ticker.C:
			packed := atomic.LoadUint64(&bytesPacked)
			if packed < last {
				// counter was reset for a new build
				last = 0
			}
			bytesPerS := packed - last
			last = packed
			rate := humanize.BPS(bytesPerS)
			status := rate
			if total := atomic.LoadUint64(&p.total); total > 0 {
				pct := float64(packed) / float64(total) * 100
				status = fmt.Sprintf("%02.2f%% of %s, packing at %s",
					pct,
					humanize.Bytes(total),
					rate)
			}
			fmt.Printf("\r[%s] %s                 ", p.getStatus(), status)
		case <-ctx.Done():
			return
		}
	}
}
