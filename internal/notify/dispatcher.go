package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var ErrNoAddress = errors.New("recipient has no email address")

// Message - одно письмо для рассылки.
type Message struct {
	To       string
	Template string
	Data     map[string]string
}

type Outcome struct {
	To       string
	Template string
	Err      error
}

// Report - итог рассылки по каждому адресату.
type Report struct {
	Sent   int
	Failed []Outcome
}

// Err объединяет ошибки всех неудачных отправок; nil, если всё доставлено.
func (r Report) Err() error {
	var err error
	for _, o := range r.Failed {
		err = multierr.Append(err, fmt.Errorf("%s <%s>: %w", o.Template, o.To, o.Err))
	}
	return err
}

func (r Report) Merge(other Report) Report {
	return Report{Sent: r.Sent + other.Sent, Failed: append(append([]Outcome{}, r.Failed...), other.Failed...)}
}

type Dispatcher struct {
	notifier Notifier
	catalog  *Catalog
	workers  int
	log      logrus.FieldLogger
}

func NewDispatcher(n Notifier, c *Catalog, workers int, log logrus.FieldLogger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{notifier: n, catalog: c, workers: workers, log: log}
}

// Dispatch отправляет письма параллельно, не более workers одновременно.
// Ошибка одного адресата не мешает остальным; порядок отправки не гарантируется.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []Message) Report {
	outcomes := make([]Outcome, len(msgs))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, m := range msgs {
		i, m := i, m
		g.Go(func() error {
			outcomes[i] = Outcome{To: m.To, Template: m.Template, Err: d.send(ctx, m)}
			return nil
		})
	}
	_ = g.Wait()

	var rep Report
	for _, o := range outcomes {
		if o.Err != nil {
			d.log.WithError(o.Err).WithFields(logrus.Fields{"to": o.To, "template": o.Template}).Warn("notification failed")
			rep.Failed = append(rep.Failed, o)
			continue
		}
		rep.Sent++
	}
	return rep
}

func (d *Dispatcher) send(ctx context.Context, m Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()

	if m.To == "" {
		return ErrNoAddress
	}
	subject, body, err := d.catalog.Render(m.Template, m.Data)
	if err != nil {
		return err
	}
	return d.notifier.Send(ctx, m.To, subject, body)
}
