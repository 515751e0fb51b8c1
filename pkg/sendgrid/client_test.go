package sendgrid

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
)

type stubSender struct {
	resp *rest.Response
	err  error
	got  *mail.SGMailV3
}

func (s *stubSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	s.got = email
	return s.resp, s.err
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), config.SendgridConfig{}, nil); !errors.Is(err, errAPIKeyRequired) {
		t.Fatalf("expected key error, got %v", err)
	}
}

func TestSendBuildsSingleEmail(t *testing.T) {
	stub := &stubSender{resp: &rest.Response{StatusCode: 202}}
	c := &Client{api: stub, fromName: "SmartShop", fromAddr: "orders@smartshop.local"}

	err := c.Send(context.Background(), Message{
		ToName:  "Asha",
		ToEmail: " asha@example.com ",
		Subject: "Thank you for your order!",
		Text:    "plain",
		HTML:    "<p>html</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.got == nil || stub.got.Subject != "Thank you for your order!" {
		t.Fatalf("unexpected payload %+v", stub.got)
	}
	if stub.got.From.Address != "orders@smartshop.local" {
		t.Fatalf("unexpected from %+v", stub.got.From)
	}
	if len(stub.got.Personalizations) != 1 || stub.got.Personalizations[0].To[0].Address != "asha@example.com" {
		t.Fatalf("unexpected recipients")
	}
}

func TestSendFailures(t *testing.T) {
	c := &Client{api: &stubSender{resp: &rest.Response{StatusCode: 401, Body: "unauthorized"}}}
	if err := c.Send(context.Background(), Message{ToEmail: "a@example.com"}); err == nil {
		t.Fatalf("expected non-2xx to fail")
	}
	if err := c.Send(context.Background(), Message{}); !errors.Is(err, errRecipientRequired) {
		t.Fatalf("expected recipient error, got %v", err)
	}
	transport := &Client{api: &stubSender{err: errors.New("dial tcp: timeout")}}
	if err := transport.Send(context.Background(), Message{ToEmail: "a@example.com"}); err == nil {
		t.Fatalf("expected transport error")
	}
}
