package printing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoice-printer-bridge/internal/logging"
	"invoice-printer-bridge/internal/metrics"
	"invoice-printer-bridge/internal/receipt"
)

// CopyLabels lists the copies printed for every invoice, in order. The
// empty label is the customer copy.
var CopyLabels = []string{receipt.MerchantCopy, ""}

// Connector delivers one complete job to a device.
type Connector interface {
	Send(ctx context.Context, data []byte) error
}

// Prober is implemented by connectors that can check the device before a
// job is sent.
type Prober interface {
	Available(ctx context.Context) error
}

type Layout struct {
	Width    int
	DotWidth int
}

type Job struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Copies int    `json:"copies"`
	Bytes  int    `json:"bytes"`
}

// Dispatcher serializes jobs so only one device session is open at a time.
type Dispatcher struct {
	mu    sync.Mutex
	log   *logging.Logger
	newID func() string
}

func NewDispatcher(log *logging.Logger) *Dispatcher {
	return &Dispatcher{log: log, newID: uuid.NewString}
}

// BuildInvoice encodes every copy of inv, each followed by a cut, as a
// single job.
func BuildInvoice(f *receipt.Formatter, inv *receipt.Invoice, layout Layout) ([]byte, error) {
	enc := NewEncoder(layout.DotWidth)
	for _, label := range CopyLabels {
		instrs, err := f.Format(inv, label, layout.Width)
		if err != nil {
			return nil, err
		}
		enc.Begin()
		if err := enc.Encode(append(instrs, receipt.Cut{})); err != nil {
			return nil, err
		}
	}
	return enc.Bytes(), nil
}

func (d *Dispatcher) PrintInvoice(ctx context.Context, conn Connector, f *receipt.Formatter, inv *receipt.Invoice, layout Layout) (*Job, error) {
	data, err := BuildInvoice(f, inv, layout)
	if err != nil {
		return nil, err
	}
	return d.submit(ctx, conn, "invoice", len(CopyLabels), data)
}

func (d *Dispatcher) PrintText(ctx context.Context, conn Connector, text string) (*Job, error) {
	return d.submit(ctx, conn, "text", 1, TextReceipt(text))
}

func (d *Dispatcher) PrintRaw(ctx context.Context, conn Connector, data []byte) (*Job, error) {
	return d.submit(ctx, conn, "raw", 1, data)
}

func (d *Dispatcher) submit(ctx context.Context, conn Connector, kind string, copies int, data []byte) (*Job, error) {
	job := &Job{ID: d.newID(), Kind: kind, Copies: copies, Bytes: len(data)}
	log := d.log.With("job", job.ID)

	d.mu.Lock()
	defer d.mu.Unlock()
	// The deadline may have passed while waiting for the previous job.
	if err := ctx.Err(); err != nil {
		log.Warn("%s job dropped before send: %v", kind, err)
		return nil, err
	}

	if p, ok := conn.(Prober); ok {
		if err := p.Available(ctx); err != nil {
			metrics.RecordPrintJob(kind, 0, err, 0)
			log.Error("%s job: device unavailable: %v", kind, err)
			return nil, err
		}
	}

	log.Info("%s job send: copies=%d bytes=%d", kind, copies, len(data))
	start := time.Now()
	err := conn.Send(ctx, data)
	elapsed := time.Since(start)
	metrics.RecordPrintJob(kind, len(data), err, elapsed)
	if err != nil {
		log.Error("%s job failed after %s: %v", kind, elapsed, err)
		return nil, err
	}
	log.Info("%s job done in %s", kind, elapsed)
	return job, nil
}
