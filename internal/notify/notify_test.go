package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool

	inFlight    int32
	maxInFlight int32
}

func (n *recordingNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	cur := atomic.AddInt32(&n.inFlight, 1)
	defer atomic.AddInt32(&n.inFlight, -1)
	for {
		max := atomic.LoadInt32(&n.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&n.maxInFlight, max, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if n.failFor[to] {
		return errors.New("mailbox unavailable")
	}
	n.mu.Lock()
	n.sent = append(n.sent, to)
	n.mu.Unlock()
	return nil
}

func newDispatcher(t *testing.T, n Notifier, workers int) *Dispatcher {
	t.Helper()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	return NewDispatcher(n, catalog, workers, logger)
}

func opportunity(to string) Message {
	return Message{To: to, Template: TemplateNewOpportunity, Data: map[string]string{
		"SupplierName": "Fornecedor", "Title": "Material escolar", "Protocol": "2026-AB", "Deadline": "10/03/2026 18:00",
	}}
}

func TestDispatchFailureDoesNotBlockOthers(t *testing.T) {
	n := &recordingNotifier{failFor: map[string]bool{"b@x.com": true}}
	d := newDispatcher(t, n, 4)

	rep := d.Dispatch(context.Background(), []Message{
		opportunity("a@x.com"), opportunity("b@x.com"), opportunity("c@x.com"), opportunity(""),
	})

	require.Equal(t, 2, rep.Sent)
	require.Len(t, rep.Failed, 2)
	require.ElementsMatch(t, []string{"a@x.com", "c@x.com"}, n.sent)

	err := rep.Err()
	require.Error(t, err)
	require.Contains(t, err.Error(), "b@x.com")
	require.True(t, errors.Is(err, ErrNoAddress))
}

func TestDispatchRespectsWorkerLimit(t *testing.T) {
	n := &recordingNotifier{}
	d := newDispatcher(t, n, 2)

	msgs := make([]Message, 10)
	for i := range msgs {
		msgs[i] = opportunity("s@x.com")
	}
	rep := d.Dispatch(context.Background(), msgs)

	require.Equal(t, 10, rep.Sent)
	require.NoError(t, rep.Err())
	require.LessOrEqual(t, atomic.LoadInt32(&n.maxInFlight), int32(2))
}

func TestDispatchUnknownTemplate(t *testing.T) {
	d := newDispatcher(t, &recordingNotifier{}, 1)
	rep := d.Dispatch(context.Background(), []Message{{To: "a@x.com", Template: "nope"}})
	require.Len(t, rep.Failed, 1)
}

func TestReportMerge(t *testing.T) {
	a := Report{Sent: 1, Failed: []Outcome{{To: "x"}}}
	b := Report{Sent: 2}
	m := a.Merge(b)
	require.Equal(t, 3, m.Sent)
	require.Len(t, m.Failed, 1)
}

func TestRenderWinnerDepartmentGolden(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	subject, body, err := catalog.Render(TemplateWinnerDepartment, map[string]string{
		"DepartmentName": "Educação",
		"Title":          "Material escolar",
		"Protocol":       "2026-0A1B2C3D",
		"Winners":        "X, Y",
		"TotalValue":     "R$ 150,00",
	})
	require.NoError(t, err)
	require.Equal(t, "Vencedor definido: Material escolar", subject)

	g := goldie.New(t)
	g.Assert(t, "vencedor_secretaria", []byte(body))
}

func TestRenderOpportunityGolden(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	_, body, err := catalog.Render(TemplateNewOpportunity, opportunity("a@x.com").Data)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "nova_oportunidade", []byte(body))
}

func TestRenderEscapesHTML(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	_, body, err := catalog.Render(TemplateQuestionAnswered, map[string]string{
		"SupplierName": "Acme", "Protocol": "P", "Question": "<script>", "Answer": "ok",
	})
	require.NoError(t, err)
	require.NotContains(t, body, "<script>")
	require.Contains(t, body, "&lt;script&gt;")
}

func TestRenderMissingKey(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	_, _, err = catalog.Render(TemplateWinner, map[string]string{"SupplierName": "Acme"})
	require.Error(t, err)
}

func TestFormatBRL(t *testing.T) {
	require.Equal(t, "R$ 150,00", FormatBRL(decimal.NewFromInt(150)))
	require.Equal(t, "R$ 1.234,50", FormatBRL(decimal.RequireFromString("1234.5")))
	require.Equal(t, "R$ 0,01", FormatBRL(decimal.RequireFromString("0.005")))
	require.Equal(t, "R$ -1.000,00", FormatBRL(decimal.NewFromInt(-1000)))
	// больше, чем помещается в float64 без потерь
	require.Equal(t, "R$ 123.456.789.012.345.678,91", FormatBRL(decimal.RequireFromString("123456789012345678.905")))
}

func TestFormatDeadline(t *testing.T) {
	require.Equal(t, "-", FormatDeadline(nil))
	ts := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	require.Equal(t, "10/03/2026 18:00", FormatDeadline(&ts))
}

// captureSMTP подменяет отправку и возвращает письмо в том виде, в каком оно уйдёт на сервер.
func captureSMTP(t *testing.T, n *SMTPNotifier) *bytes.Buffer {
	t.Helper()
	raw := &bytes.Buffer{}
	n.send = func(_ context.Context, msg *mail.Msg) error {
		_, err := msg.WriteTo(raw)
		return err
	}
	return raw
}

func TestSMTPNotifierBuildsMessage(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 2525, From: "compras@prefeitura.gov.br"})
	raw := captureSMTP(t, n)

	require.NoError(t, n.Send(context.Background(), "acme@x.com", "Assunto", "<p>oi</p>"))

	headers, body, ok := strings.Cut(raw.String(), "\r\n\r\n")
	require.True(t, ok)
	require.Contains(t, headers, "compras@prefeitura.gov.br")
	require.Contains(t, headers, "acme@x.com")
	require.Contains(t, headers, "Subject: Assunto")
	require.Contains(t, headers, "text/html")
	require.Contains(t, body, "<p>oi</p>")
}

func TestSMTPNotifierKeepsSubjectOnOneHeaderLine(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	data := opportunity("acme@x.com").Data
	data["Title"] = "Canetas\r\nBcc: spy@evil.example"
	subject, body, err := catalog.Render(TemplateNewOpportunity, data)
	require.NoError(t, err)
	require.NotContains(t, subject, "\n")

	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25, From: "compras@prefeitura.gov.br"})
	raw := captureSMTP(t, n)

	// Notifier получает тему и напрямую, без каталога
	require.NoError(t, n.Send(context.Background(), "acme@x.com", "Canetas\r\nBcc: spy@evil.example", body))
	headers, _, ok := strings.Cut(raw.String(), "\r\n\r\n")
	require.True(t, ok)
	require.NotContains(t, headers, "\r\nBcc:")
	require.NotContains(t, headers, "\nBcc:")
	require.Contains(t, headers, "Canetas Bcc: spy@evil.example")
}

func TestSMTPNotifierEncodesNonASCIISubject(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25, From: "compras@prefeitura.gov.br"})
	raw := captureSMTP(t, n)

	require.NoError(t, n.Send(context.Background(), "educacao@pref.gov.br", "Vencedor definido: Educação", "<p>ok</p>"))

	headers, _, ok := strings.Cut(raw.String(), "\r\n\r\n")
	require.True(t, ok)
	require.NotContains(t, headers, "Educação")
	require.Contains(t, strings.ToLower(headers), "=?utf-8?q?")
}

func TestSMTPNotifierRejectsBadRecipient(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25, From: "compras@prefeitura.gov.br"})
	captureSMTP(t, n)
	require.Error(t, n.Send(context.Background(), "not an address", "s", "b"))
}

func TestSMTPNotifierHonoursCancelledContext(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, n.Send(ctx, "a@x.com", "s", "b"), context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	require.NoError(t, LogNotifier{Log: logger}.Send(context.Background(), "a@x.com", "s", "body"))
	require.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	require.Equal(t, "a@x.com", hook.LastEntry().Data["to"])
}
